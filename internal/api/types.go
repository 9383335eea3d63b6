package api

import "time"

// Locker status values as reported by the service.
const (
	StatusAvailable   = "available"
	StatusReserved    = "reserved"
	StatusMaintenance = "maintenance"
)

// TokenPair holds the credentials returned by a successful login.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// User is the profile returned by the who-am-I endpoint.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Registration is the payload for creating a new account.
// The service validates password strength and confirmation; the client
// sends the fields as given.
type Registration struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Locker is the client's read-only snapshot of a locker. The service owns
// the authoritative copy; every locally held status is advisory until the
// next successful list call.
type Locker struct {
	ID        int64     `json:"id"`
	Number    string    `json:"locker_number"`
	Location  string    `json:"location"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Reservation is a time-bounded hold on a locker. Expiry is evaluated by
// the service, not the client.
type Reservation struct {
	ID            int64     `json:"id"`
	LockerID      int64     `json:"locker"`
	Locker        *Locker   `json:"locker_details,omitempty"`
	ReservedAt    time.Time `json:"reserved_at"`
	ReservedUntil time.Time `json:"reserved_until"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
