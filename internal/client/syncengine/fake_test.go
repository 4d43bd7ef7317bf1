package syncengine

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"sort"
	"strconv"
	"sync"

	"github.com/dmitrijs2005/habitsync/internal/client/assets"
	"github.com/dmitrijs2005/habitsync/internal/client/models"
	"github.com/dmitrijs2005/habitsync/internal/common"
	"github.com/dmitrijs2005/habitsync/internal/cryptox"
)

type serverRecord struct {
	rec      models.RemoteRecord
	blob     []byte
	checksum string
	seq      int64
	deleted  bool
}

// fakeServer is an in-memory record zone shared by fake devices.
type fakeServer struct {
	mu       sync.Mutex
	zone     bool
	version  int
	seq      int64
	records  map[string]*serverRecord
	pageSize int

	sendErr   error
	fetchErrs []error
	saveErrs  map[string]error

	ensureCalls    int
	subscribeCalls int
	sendCalls      int
	fetchCalls     int
	fetchCursors   [][]byte

	sendGate    chan struct{}
	sendEntered chan struct{}
}

func newFakeServer() *fakeServer {
	return &fakeServer{records: map[string]*serverRecord{}, saveErrs: map[string]error{}}
}

func (s *fakeServer) nextToken() []byte {
	s.version++
	return []byte(fmt.Sprintf("v%d", s.version))
}

// put stores rr as if another device had saved it.
func (s *fakeServer) put(rr models.RemoteRecord) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	rr.Fields = maps.Clone(rr.Fields)
	rr.Asset = nil
	rr.VersionToken = s.nextToken()
	s.seq++
	s.records[rr.ID] = &serverRecord{rec: rr, seq: s.seq}
	return bytes.Clone(rr.VersionToken)
}

func (s *fakeServer) get(id string) (models.RemoteRecord, []byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sr, ok := s.records[id]
	if !ok || sr.deleted {
		return models.RemoteRecord{}, nil, false
	}
	return sr.rec, sr.blob, true
}

func (s *fakeServer) set(fn func(s *fakeServer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *fakeServer) counters() (ensure, subscribe, send, fetch int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureCalls, s.subscribeCalls, s.sendCalls, s.fetchCalls
}

// deviceRemote is one device's view of a fakeServer. Assets travel
// through the device's file store like they do over the wire.
type deviceRemote struct {
	srv   *fakeServer
	files *assets.FileStore
}

func (d *deviceRemote) EnsureZone(ctx context.Context) error {
	d.srv.mu.Lock()
	defer d.srv.mu.Unlock()
	d.srv.ensureCalls++
	d.srv.zone = true
	return nil
}

func (d *deviceRemote) RegisterSubscription(ctx context.Context) error {
	d.srv.mu.Lock()
	defer d.srv.mu.Unlock()
	d.srv.subscribeCalls++
	return nil
}

func (d *deviceRemote) outgoing(sr *serverRecord) (models.RemoteRecord, error) {
	rr := sr.rec
	rr.Fields = maps.Clone(sr.rec.Fields)
	rr.VersionToken = bytes.Clone(sr.rec.VersionToken)
	if sr.blob != nil {
		p, err := d.files.Stage(rr.ID+".m4a", sr.blob)
		if err != nil {
			return models.RemoteRecord{}, err
		}
		rr.Asset = &models.AssetRef{Path: p, Checksum: sr.checksum}
	}
	return rr, nil
}

func (d *deviceRemote) FetchChanges(ctx context.Context, cursor []byte) (models.FetchResult, error) {
	s := d.srv
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetchCalls++
	s.fetchCursors = append(s.fetchCursors, bytes.Clone(cursor))
	if len(s.fetchErrs) > 0 {
		err := s.fetchErrs[0]
		s.fetchErrs = s.fetchErrs[1:]
		return models.FetchResult{}, err
	}
	if !s.zone {
		return models.FetchResult{}, common.ErrZoneNotFound
	}

	var after int64
	if len(cursor) > 0 {
		v, err := strconv.ParseInt(string(cursor), 10, 64)
		if err != nil {
			return models.FetchResult{}, common.ErrCursorExpired
		}
		after = v
	}

	var changed []*serverRecord
	for _, sr := range s.records {
		if sr.seq > after {
			changed = append(changed, sr)
		}
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i].seq < changed[j].seq })

	res := models.FetchResult{}
	if s.pageSize > 0 && len(changed) > s.pageSize {
		changed = changed[:s.pageSize]
		res.MoreComing = true
	}
	last := after
	for _, sr := range changed {
		last = sr.seq
		if sr.deleted {
			res.Deleted = append(res.Deleted, sr.rec.ID)
			continue
		}
		rr, err := d.outgoing(sr)
		if err != nil {
			return models.FetchResult{}, err
		}
		res.Changed = append(res.Changed, rr)
	}
	res.Cursor = []byte(strconv.FormatInt(last, 10))
	return res, nil
}

func (d *deviceRemote) SendChanges(ctx context.Context, saves []models.RemoteRecord, deletes []string) (models.SendResult, error) {
	s := d.srv
	s.mu.Lock()
	s.sendCalls++
	gate, entered := s.sendGate, s.sendEntered
	s.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return models.SendResult{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return models.SendResult{}, s.sendErr
	}

	res := models.SendResult{}
	for _, rr := range saves {
		if !s.zone {
			res.FailedSaves = append(res.FailedSaves, models.FailedSave{ID: rr.ID, Err: common.ErrZoneNotFound})
			continue
		}
		if err, ok := s.saveErrs[rr.ID]; ok {
			res.FailedSaves = append(res.FailedSaves, models.FailedSave{ID: rr.ID, Err: err})
			continue
		}
		existing, ok := s.records[rr.ID]
		if ok && !existing.deleted && !bytes.Equal(existing.rec.VersionToken, rr.VersionToken) {
			server, err := d.outgoing(existing)
			if err != nil {
				return models.SendResult{}, err
			}
			res.FailedSaves = append(res.FailedSaves, models.FailedSave{ID: rr.ID, Err: common.ErrConflict, ServerRecord: &server})
			continue
		}

		sr := &serverRecord{}
		if ok && !existing.deleted {
			sr.blob, sr.checksum = existing.blob, existing.checksum
		}
		if rr.Asset != nil {
			data, err := d.files.Read(rr.Asset.Path)
			if err != nil {
				return models.SendResult{}, err
			}
			sr.blob, sr.checksum = data, cryptox.Checksum(data)
		}
		stored := rr
		stored.Fields = maps.Clone(rr.Fields)
		stored.Asset = nil
		stored.VersionToken = s.nextToken()
		s.seq++
		sr.rec, sr.seq = stored, s.seq
		s.records[rr.ID] = sr
		res.Saved = append(res.Saved, stored)
	}
	for _, id := range deletes {
		existing, ok := s.records[id]
		if !ok || existing.deleted {
			res.FailedDeletes = append(res.FailedDeletes, models.FailedDelete{ID: id, Err: common.ErrNotFound})
			continue
		}
		s.seq++
		existing.deleted, existing.seq, existing.blob = true, s.seq, nil
		res.Deleted = append(res.Deleted, id)
	}
	return res, nil
}
