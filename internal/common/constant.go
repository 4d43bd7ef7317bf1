// Package common contains shared constants and sentinel errors used across
// habitsync components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// DeviceIDHeaderName carries the stable id of the calling device, so the
// server can skip echoing change notifications back to their origin.
const DeviceIDHeaderName = "device_id"

// DefaultZoneName is the remote partition records are saved into.
const DefaultZoneName = "Affirmations"

// RecordTypeAffirmation is the remote record type of habit records.
const RecordTypeAffirmation = "Affirmation"

// MaxMessageSize bounds gRPC messages in both directions. Audio assets
// travel inline, so it is well above the gRPC default of 4 MiB.
const MaxMessageSize = 64 << 20
