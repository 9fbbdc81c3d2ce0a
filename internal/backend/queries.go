package backend

const bookingFields = `
  first_name
  last_name
  email
  phone
  destination
  date
  trip_type
  trip_cost
  area
  start_point
  start_time
  end_time
  seats
  trip_status
  payment_type
  payment_status`

const queryUser = `query GetUserById($id: ID!) {
  usersPermissionsUser(id: $id) {
    data {
      id
      attributes {
        username
        first_name
        last_name
        area
        phone_number
        email
        start_point
        university
        faculty
        confirmed
        subscription
        photo { data { id attributes { url } } }
        bookings { data { id attributes {` + bookingFields + `
        } } }
      }
    }
  }
}`

const queryDashboard = `query GetBookingDashboards {
  bookingDashboards {
    data {
      attributes {
        booking_status
        booking_start_date
        departure_time
        booking_days_count
        available_bookings_count
        cancel_friday_booking
        end_of_day_time
        notes
      }
    }
  }
}`

const queryAreas = `query GetAreas {
  areas {
    data {
      id
      attributes {
        name
        places {
          data {
            id
            attributes {
              place_name
              one_way_price
              return_price
              round_trip_price
              timing
            }
          }
        }
      }
    }
  }
}`

const queryUniversities = `query GetUniversities {
  universities {
    data {
      id
      attributes {
        university_name
        colleges(pagination: { page: 1, pageSize: 20 }) {
          data { id attributes { faculty_name } }
        }
      }
    }
  }
}`

const queryNotifications = `query GetNotifications($userId: ID!) {
  notifications(filters: { users: { id: { eq: $userId } } }) {
    data {
      id
      attributes {
        title
        message
        read
      }
    }
  }
}`

const mutationLogin = `mutation Login($identifier: String!, $password: String!) {
  login(input: { identifier: $identifier, password: $password }) {
    jwt
    user { id username email }
  }
}`

const mutationCreateBooking = `mutation CreateBooking(
  $firstName: String!
  $lastName: String!
  $email: String!
  $phone: String!
  $destination: String!
  $date: Date!
  $tripType: String!
  $tripCost: Float!
  $area: String!
  $startPoint: String!
  $startTime: String!
  $endTime: String!
  $seats: Int!
  $paymentType: String!
  $userId: ID!
  $publishedAt: DateTime!
) {
  createBooking(
    data: {
      first_name: $firstName
      last_name: $lastName
      email: $email
      phone: $phone
      destination: $destination
      date: $date
      trip_type: $tripType
      trip_cost: $tripCost
      area: $area
      start_point: $startPoint
      start_time: $startTime
      end_time: $endTime
      seats: $seats
      payment_type: $paymentType
      user_id: $userId
      publishedAt: $publishedAt
    }
  ) {
    data { id }
  }
}`

const mutationUpdateBooking = `mutation UpdateBooking($id: ID!, $data: BookingInput!) {
  updateBooking(id: $id, data: $data) {
    data { id attributes { trip_status } }
  }
}`

const mutationNotificationRead = `mutation UpdateNotification($id: ID!) {
  updateNotification(id: $id, data: { read: true }) {
    data { id attributes { read } }
  }
}`
