package booking

// MaxSeatsPerBooking is the hard cap on seats in a single booking,
// independent of the remaining capacity.
const MaxSeatsPerBooking = 4

// CalculateAvailableSeats returns the seats left on the leg(s) t uses,
// clamped to [0, MaxSeatsPerBooking]. Unknown trip types get no seats.
func CalculateAvailableSeats(t TripType, total, outboundBooked, returnBooked int) int {
	if !t.Valid() {
		return 0
	}
	remaining := RemainingSeats(t, total, outboundBooked, returnBooked)
	return max(0, min(remaining, MaxSeatsPerBooking))
}

// RemainingSeats is the raw, unclamped capacity left for t. A round trip is
// limited by its more constrained leg.
func RemainingSeats(t TripType, total, outboundBooked, returnBooked int) int {
	switch t {
	case TripOutbound:
		return total - outboundBooked
	case TripReturn:
		return total - returnBooked
	case TripRoundTrip:
		return min(total-outboundBooked, total-returnBooked)
	}
	return 0
}

// SeatOptions lists the seat counts a rider may pick, 1 through limit.
func SeatOptions(limit int) []int {
	limit = min(limit, MaxSeatsPerBooking)
	if limit <= 0 {
		return nil
	}
	opts := make([]int, limit)
	for i := range opts {
		opts[i] = i + 1
	}
	return opts
}
