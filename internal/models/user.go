package models

// User is the account returned by the auth endpoints.
type User struct {
	UserID   string        `json:"user_id,omitempty"`
	Email    string        `json:"email,omitempty"`
	FullName string        `json:"full_name,omitempty"`
	Storage  *StorageQuota `json:"storage,omitempty"`
}

// Key is the namespace the server stores the user's files under.
func (u *User) Key() string {
	if u == nil {
		return ""
	}
	if u.UserID != "" {
		return u.UserID
	}
	return u.Email
}

// DisplayName prefers the full name and falls back to the email.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

// StorageQuota describes used and available bytes.
type StorageQuota struct {
	Used       int64   `json:"used"`
	Limit      int64   `json:"limit"`
	Percentage float64 `json:"percentage,omitempty"`
}

// Remaining returns the bytes left before the limit, never negative.
func (q StorageQuota) Remaining() int64 {
	if q.Used >= q.Limit {
		return 0
	}
	return q.Limit - q.Used
}

// Fraction returns used/limit in [0,1]. A zero limit reports 0.
func (q StorageQuota) Fraction() float64 {
	if q.Limit <= 0 {
		return 0
	}
	f := float64(q.Used) / float64(q.Limit)
	if f > 1 {
		return 1
	}
	return f
}

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by /auth/login and /auth/signup.
type AuthResponse struct {
	Status       string        `json:"status"`
	Token        string        `json:"token"`
	IDToken      string        `json:"id_token,omitempty"`
	AccessToken  string        `json:"access_token,omitempty"`
	RefreshToken string        `json:"refresh_token,omitempty"`
	ExpiresIn    int           `json:"expires_in,omitempty"`
	User         *User         `json:"user"`
	Storage      *StorageQuota `json:"storage,omitempty"`
}

// MeResponse is returned by GET /auth/me. Older servers nest the user under data.
type MeResponse struct {
	Status  string        `json:"status"`
	User    *User         `json:"user,omitempty"`
	Data    *MeData       `json:"data,omitempty"`
	Storage *StorageQuota `json:"storage,omitempty"`
}

// MeData is the nested payload of the legacy /auth/me shape.
type MeData struct {
	User *User `json:"user,omitempty"`
}

// ResolvedUser returns user, falling back to data.user.
func (r *MeResponse) ResolvedUser() *User {
	if r == nil {
		return nil
	}
	if r.User != nil {
		return r.User
	}
	if r.Data != nil {
		return r.Data.User
	}
	return nil
}

// ResolvedStorage returns the top-level quota, falling back to the user's.
func (r *MeResponse) ResolvedStorage() *StorageQuota {
	if r == nil {
		return nil
	}
	if r.Storage != nil {
		return r.Storage
	}
	if u := r.ResolvedUser(); u != nil {
		return u.Storage
	}
	return nil
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponse is returned by POST /auth/refresh.
type RefreshResponse struct {
	Status      string `json:"status"`
	Token       string `json:"token"`
	IDToken     string `json:"id_token,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
