package models

// User is the rider profile as returned by the backend.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone_number"`
	Area         string    `json:"area"`
	StartPoint   string    `json:"start_point"`
	University   string    `json:"university"`
	Faculty      string    `json:"faculty"`
	Confirmed    bool      `json:"confirmed"`
	Subscription string    `json:"subscription,omitempty"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	Bookings     []Booking `json:"bookings,omitempty"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// University is a destination campus with its colleges.
type University struct {
	ID       string    `json:"id"`
	Name     string    `json:"university_name"`
	Colleges []College `json:"colleges,omitempty"`
}

// College is a faculty inside a university.
type College struct {
	ID   string `json:"id"`
	Name string `json:"faculty_name"`
}

// Notification is an in-app message addressed to a rider.
type Notification struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Read    bool   `json:"read"`
}

// UnreadCount counts notifications not yet marked read.
func UnreadCount(items []Notification) int {
	n := 0
	for _, it := range items {
		if !it.Read {
			n++
		}
	}
	return n
}
