package proto

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Per-item failure codes carried in SendChangesResponse.
const (
	ItemCodeConflict     = "CONFLICT"
	ItemCodeZoneNotFound = "ZONE_NOT_FOUND"
	ItemCodeNotFound     = "NOT_FOUND"
	ItemCodeBusy         = "BUSY"
	ItemCodeInvalid      = "INVALID"
	ItemCodeInternal     = "INTERNAL"
)

// Error reasons attached to statuses as errdetails.ErrorInfo.
const (
	ErrorDomain          = "habitsync"
	ReasonZoneNotFound   = "ZONE_NOT_FOUND"
	ReasonCursorExpired  = "CURSOR_EXPIRED"
	ReasonAccountChanged = "ACCOUNT_CHANGED"
)

type Empty struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Salt     []byte `json:"salt"`
	Verifier []byte `json:"verifier"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
}

type GetSaltRequest struct {
	Username string `json:"username"`
}

type GetSaltResponse struct {
	Salt []byte `json:"salt"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Verifier []byte `json:"verifier"`
}

type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ZoneRequest is the request of EnsureZone, RegisterSubscription and
// Subscribe.
type ZoneRequest struct {
	Zone string `json:"zone"`
}

type FetchChangesRequest struct {
	Zone   string `json:"zone"`
	Cursor []byte `json:"cursor,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type FetchChangesResponse struct {
	Records    []WireRecord `json:"records"`
	Deleted    []string     `json:"deleted"`
	Cursor     []byte       `json:"cursor"`
	MoreComing bool         `json:"more_coming"`
}

type SendChangesRequest struct {
	Zone    string       `json:"zone"`
	Saves   []WireRecord `json:"saves"`
	Deletes []string     `json:"deletes"`
}

type SendChangesResponse struct {
	Saved         []WireRecord  `json:"saved"`
	Deleted       []string      `json:"deleted"`
	FailedSaves   []ItemFailure `json:"failed_saves"`
	FailedDeletes []ItemFailure `json:"failed_deletes"`
}

type ItemFailure struct {
	ID           string      `json:"id"`
	Code         string      `json:"code"`
	Message      string      `json:"message,omitempty"`
	ServerRecord *WireRecord `json:"server_record,omitempty"`
}

// WireRecord is a record as it travels between client and server. A nil
// value in Fields is an explicit null and clears the field.
type WireRecord struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Fields       map[string]any `json:"fields"`
	Asset        *WireAsset     `json:"asset,omitempty"`
	VersionToken []byte         `json:"version_token,omitempty"`
}

type WireAsset struct {
	Checksum string `json:"checksum"`
	Data     []byte `json:"data,omitempty"`
}

// ChangeEvent is streamed by Subscribe whenever another device of the
// same account changed the zone.
type ChangeEvent struct {
	Zone   string `json:"zone"`
	Origin string `json:"origin"`
}

// Encode converts v to a Struct through its JSON form.
func Encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return s, nil
}

// Decode fills v from s. A nil s leaves v untouched.
func Decode(s *structpb.Struct, v any) error {
	if s == nil {
		return nil
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}
