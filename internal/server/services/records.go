package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/habitsync/internal/common"
	"github.com/dmitrijs2005/habitsync/internal/cryptox"
	"github.com/dmitrijs2005/habitsync/internal/dbx"
	"github.com/dmitrijs2005/habitsync/internal/logging"
	"github.com/dmitrijs2005/habitsync/internal/server/blobstore"
	"github.com/dmitrijs2005/habitsync/internal/server/models"
	"github.com/dmitrijs2005/habitsync/internal/server/realtime"
	"github.com/dmitrijs2005/habitsync/internal/server/repositories/records"
	"github.com/dmitrijs2005/habitsync/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const (
	DefaultPageSize = 200
	MaxPageSize     = 1000

	versionTokenSize = 16
)

// ErrInvalidRecord rejects a single save that cannot be stored as sent.
var ErrInvalidRecord = errors.New("invalid record")

// Asset is an attachment of a record. Data may be left out when the
// receiver already has the blob with Checksum.
type Asset struct {
	Checksum string
	Data     []byte
}

// Record is a record as clients send and receive it. A nil value in
// Fields clears the field.
type Record struct {
	ID           string
	Type         string
	Fields       map[string]any
	Asset        *Asset
	VersionToken string
}

// ItemFailure reports one rejected save or delete. Server is set on
// conflicts and holds the current server copy.
type ItemFailure struct {
	ID     string
	Err    error
	Server *Record
}

type SendResult struct {
	Saved         []Record
	Deleted       []string
	FailedSaves   []ItemFailure
	FailedDeletes []ItemFailure
}

type FetchResult struct {
	Records    []Record
	Deleted    []string
	Cursor     []byte
	MoreComing bool
}

// Publisher receives a notification after every change to a zone.
type Publisher interface {
	Publish(ev realtime.Event)
}

// cursor is the decoded form of the opaque change cursor handed to
// clients.
type cursor struct {
	UserID     string `json:"u"`
	Generation string `json:"g"`
	Seq        int64  `json:"s"`
}

// RecordService stores record zones and exchanges change sets with
// devices. Writes to one zone are serialized by locking the zone row, so
// sequence numbers become visible in order.
type RecordService struct {
	repomanager repomanager.RepositoryManager
	blobs       blobstore.Store
	events      Publisher
	logger      logging.Logger
}

func NewRecordService(m repomanager.RepositoryManager, blobs blobstore.Store, events Publisher, logger logging.Logger) *RecordService {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &RecordService{repomanager: m, blobs: blobs, events: events, logger: logger}
}

func (s *RecordService) records(db dbx.DBTX) records.Repository {
	return s.repomanager.Records(db)
}

// EnsureZone creates zone for userID unless it exists.
func (s *RecordService) EnsureZone(ctx context.Context, userID, zone string) error {
	if zone == "" {
		return fmt.Errorf("%w: zone name is required", common.ErrorValidation)
	}
	if _, err := s.records(s.repomanager.DB()).EnsureZone(ctx, userID, zone, uuid.NewString()); err != nil {
		return fmt.Errorf("ensure zone: %w", err)
	}
	return nil
}

// RegisterSubscription marks zone as watched for push notifications.
func (s *RecordService) RegisterSubscription(ctx context.Context, userID, zone string) error {
	err := s.records(s.repomanager.DB()).SetSubscribed(ctx, userID, zone)
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrZoneNotFound
	}
	if err != nil {
		return fmt.Errorf("register subscription: %w", err)
	}
	return nil
}

// Subscribed reports whether zone exists and push was registered for it.
func (s *RecordService) Subscribed(ctx context.Context, userID, zone string) (bool, error) {
	z, err := s.records(s.repomanager.DB()).GetZone(ctx, userID, zone)
	if errors.Is(err, common.ErrorNotFound) {
		return false, common.ErrZoneNotFound
	}
	if err != nil {
		return false, fmt.Errorf("get zone: %w", err)
	}
	return z.Subscribed, nil
}

// FetchChanges returns changes of zone after rawCursor, at most limit of
// them. An empty cursor starts from the beginning.
func (s *RecordService) FetchChanges(ctx context.Context, userID, zone string, rawCursor []byte, limit int) (*FetchResult, error) {
	repo := s.records(s.repomanager.DB())

	z, err := repo.GetZone(ctx, userID, zone)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrZoneNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get zone: %w", err)
	}

	from, err := parseCursor(rawCursor, userID, z)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)

	rows, err := repo.ListSince(ctx, userID, zone, from.Seq, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}

	res := &FetchResult{}
	if len(rows) > limit {
		rows = rows[:limit]
		res.MoreComing = true
	}

	next := from
	for _, row := range rows {
		next.Seq = row.Seq
		if row.Deleted {
			res.Deleted = append(res.Deleted, row.ID)
			continue
		}
		rec, err := s.toRecord(ctx, row, true)
		if err != nil {
			return nil, err
		}
		res.Records = append(res.Records, rec)
	}

	if res.Cursor, err = json.Marshal(next); err != nil {
		return nil, fmt.Errorf("encode cursor: %w", err)
	}
	return res, nil
}

func parseCursor(raw []byte, userID string, z *models.Zone) (cursor, error) {
	if len(raw) == 0 {
		return cursor{UserID: userID, Generation: z.Generation}, nil
	}
	var c cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return cursor{}, fmt.Errorf("%w: malformed cursor", common.ErrCursorExpired)
	}
	if c.UserID != userID {
		return cursor{}, fmt.Errorf("%w: cursor belongs to another account", common.ErrAccountChanged)
	}
	if c.Generation != z.Generation || c.Seq > z.Seq || c.Seq < 0 {
		return cursor{}, fmt.Errorf("%w: zone was reset", common.ErrCursorExpired)
	}
	return c, nil
}

// SendChanges applies saves and deletes to zone on behalf of device
// origin. Individual rejections are reported in the result; an error
// means nothing was applied.
func (s *RecordService) SendChanges(ctx context.Context, userID, origin, zone string, saves []Record, deletes []string) (*SendResult, error) {
	res := &SendResult{}

	err := s.repomanager.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		*res = SendResult{}
		repo := s.records(tx)

		_, err := repo.LockZone(ctx, userID, zone)
		if errors.Is(err, common.ErrorNotFound) {
			for _, r := range saves {
				res.FailedSaves = append(res.FailedSaves, ItemFailure{ID: r.ID, Err: common.ErrZoneNotFound})
			}
			for _, id := range deletes {
				res.FailedDeletes = append(res.FailedDeletes, ItemFailure{ID: id, Err: common.ErrZoneNotFound})
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("lock zone: %w", err)
		}

		for _, r := range saves {
			saved, failure, err := s.save(ctx, repo, userID, zone, r)
			if err != nil {
				return err
			}
			if failure != nil {
				res.FailedSaves = append(res.FailedSaves, *failure)
				continue
			}
			res.Saved = append(res.Saved, *saved)
		}

		for _, id := range deletes {
			failure, err := s.delete(ctx, repo, userID, zone, id)
			if err != nil {
				return err
			}
			if failure != nil {
				res.FailedDeletes = append(res.FailedDeletes, *failure)
				continue
			}
			res.Deleted = append(res.Deleted, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(res.Saved)+len(res.Deleted) > 0 && s.events != nil {
		s.events.Publish(realtime.Event{UserID: userID, Zone: zone, Origin: origin})
	}
	s.logger.Debug(ctx, "changes applied",
		"user", userID, "zone", zone,
		"saved", len(res.Saved), "deleted", len(res.Deleted),
		"failed_saves", len(res.FailedSaves), "failed_deletes", len(res.FailedDeletes))
	return res, nil
}

// save writes one record. Saving over a live record requires the version
// token the client last saw; a tombstoned record is written as new.
func (s *RecordService) save(ctx context.Context, repo records.Repository, userID, zone string, in Record) (*Record, *ItemFailure, error) {
	if in.ID == "" || in.Type == "" {
		return nil, &ItemFailure{ID: in.ID, Err: fmt.Errorf("%w: id and type are required", ErrInvalidRecord)}, nil
	}

	existing, err := repo.Get(ctx, userID, zone, in.ID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, nil, fmt.Errorf("get record %s: %w", in.ID, err)
	}
	if existing != nil && existing.Deleted {
		existing = nil
	}

	if existing != nil && (in.VersionToken == "" || in.VersionToken != existing.VersionToken) {
		server, err := s.toRecord(ctx, existing, true)
		if err != nil {
			return nil, nil, err
		}
		return nil, &ItemFailure{ID: in.ID, Err: common.ErrConflict, Server: &server}, nil
	}

	fields := map[string]any{}
	checksum := ""
	if existing != nil {
		if err := json.Unmarshal(existing.Fields, &fields); err != nil {
			return nil, nil, fmt.Errorf("decode fields of %s: %w", in.ID, err)
		}
		checksum = existing.AssetChecksum
	}
	for k, v := range in.Fields {
		if v == nil {
			delete(fields, k)
			continue
		}
		fields[k] = v
	}

	if in.Asset != nil && in.Asset.Checksum != checksum {
		if len(in.Asset.Data) == 0 {
			return nil, &ItemFailure{ID: in.ID, Err: fmt.Errorf("%w: asset data missing", ErrInvalidRecord)}, nil
		}
		sum := cryptox.Checksum(in.Asset.Data)
		if in.Asset.Checksum != "" && in.Asset.Checksum != sum {
			return nil, &ItemFailure{ID: in.ID, Err: fmt.Errorf("%w: asset checksum mismatch", ErrInvalidRecord)}, nil
		}
		if err := s.blobs.Put(ctx, blobstore.AssetKey(userID, zone, in.ID, sum), in.Asset.Data); err != nil {
			return nil, nil, fmt.Errorf("store asset of %s: %w", in.ID, err)
		}
		checksum = sum
	}

	encoded, err := json.Marshal(fields)
	if err != nil {
		return nil, &ItemFailure{ID: in.ID, Err: fmt.Errorf("%w: %v", ErrInvalidRecord, err)}, nil
	}

	seq, err := repo.NextSeq(ctx, userID, zone)
	if err != nil {
		return nil, nil, fmt.Errorf("next seq: %w", err)
	}
	token, err := common.MakeRandHexString(versionTokenSize)
	if err != nil {
		return nil, nil, fmt.Errorf("version token: %w", err)
	}

	row := &models.Record{
		UserID:        userID,
		Zone:          zone,
		ID:            in.ID,
		Type:          in.Type,
		Fields:        encoded,
		AssetChecksum: checksum,
		VersionToken:  token,
		Seq:           seq,
		UpdatedAt:     time.Now().UTC(),
	}
	if err := repo.Upsert(ctx, row); err != nil {
		return nil, nil, fmt.Errorf("save record %s: %w", in.ID, err)
	}

	out := Record{ID: row.ID, Type: row.Type, Fields: fields, VersionToken: token}
	if checksum != "" {
		out.Asset = &Asset{Checksum: checksum}
	}
	return &out, nil, nil
}

// delete tombstones one record. Deleting a missing record is reported as
// common.ErrNotFound.
func (s *RecordService) delete(ctx context.Context, repo records.Repository, userID, zone, id string) (*ItemFailure, error) {
	existing, err := repo.Get(ctx, userID, zone, id)
	if errors.Is(err, common.ErrorNotFound) || (err == nil && existing.Deleted) {
		return &ItemFailure{ID: id, Err: common.ErrNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}

	seq, err := repo.NextSeq(ctx, userID, zone)
	if err != nil {
		return nil, fmt.Errorf("next seq: %w", err)
	}
	token, err := common.MakeRandHexString(versionTokenSize)
	if err != nil {
		return nil, fmt.Errorf("version token: %w", err)
	}

	tombstone := &models.Record{
		UserID:       userID,
		Zone:         zone,
		ID:           id,
		Type:         existing.Type,
		VersionToken: token,
		Seq:          seq,
		Deleted:      true,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := repo.Upsert(ctx, tombstone); err != nil {
		return nil, fmt.Errorf("delete record %s: %w", id, err)
	}
	return nil, nil
}

// toRecord converts a stored row, loading the asset blob when withData.
func (s *RecordService) toRecord(ctx context.Context, row *models.Record, withData bool) (Record, error) {
	out := Record{ID: row.ID, Type: row.Type, Fields: map[string]any{}, VersionToken: row.VersionToken}
	if len(row.Fields) > 0 {
		if err := json.Unmarshal(row.Fields, &out.Fields); err != nil {
			return Record{}, fmt.Errorf("decode fields of %s: %w", row.ID, err)
		}
	}
	if row.AssetChecksum == "" {
		return out, nil
	}

	out.Asset = &Asset{Checksum: row.AssetChecksum}
	if !withData {
		return out, nil
	}
	data, err := s.blobs.Get(ctx, blobstore.AssetKey(row.UserID, row.Zone, row.ID, row.AssetChecksum))
	if errors.Is(err, common.ErrorNotFound) {
		s.logger.Warn(ctx, "asset blob missing", "user", row.UserID, "zone", row.Zone, "id", row.ID)
		return out, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("load asset of %s: %w", row.ID, err)
	}
	out.Asset.Data = data
	return out, nil
}
