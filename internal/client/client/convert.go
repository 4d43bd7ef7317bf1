package client

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/habitsync/internal/client/models"
	"github.com/dmitrijs2005/habitsync/internal/common"
	"github.com/dmitrijs2005/habitsync/internal/cryptox"
	pb "github.com/dmitrijs2005/habitsync/internal/proto"
)

const stagedAssetExt = ".m4a"

// toWire attaches the asset bytes so the server stores them with the
// record.
func (c *GRPCClient) toWire(rr models.RemoteRecord) (pb.WireRecord, error) {
	w := pb.WireRecord{ID: rr.ID, Type: rr.Type, Fields: rr.Fields, VersionToken: rr.VersionToken}
	if rr.Asset == nil || c.files == nil {
		return w, nil
	}
	data, err := c.files.Read(rr.Asset.Path)
	if err != nil {
		return pb.WireRecord{}, fmt.Errorf("read asset of %s: %w", rr.ID, err)
	}
	w.Asset = &pb.WireAsset{Checksum: cryptox.Checksum(data), Data: data}
	return w, nil
}

// fromWire stages an incoming asset. An asset without data keeps only its
// checksum and has no staged path.
func (c *GRPCClient) fromWire(w pb.WireRecord) (models.RemoteRecord, error) {
	rr := models.RemoteRecord{ID: w.ID, Type: w.Type, Fields: w.Fields, VersionToken: w.VersionToken}
	if rr.Fields == nil {
		rr.Fields = map[string]any{}
	}
	if w.Asset == nil {
		return rr, nil
	}
	if len(w.Asset.Data) == 0 || c.files == nil {
		if w.Asset.Checksum != "" {
			rr.Asset = &models.AssetRef{Checksum: w.Asset.Checksum}
		}
		return rr, nil
	}
	sum := cryptox.Checksum(w.Asset.Data)
	if w.Asset.Checksum != "" && sum != w.Asset.Checksum {
		return models.RemoteRecord{}, fmt.Errorf("asset of %s: checksum mismatch", w.ID)
	}
	p, err := c.files.Stage(w.ID+stagedAssetExt, w.Asset.Data)
	if err != nil {
		return models.RemoteRecord{}, fmt.Errorf("stage asset of %s: %w", w.ID, err)
	}
	rr.Asset = &models.AssetRef{Path: p, Checksum: sum}
	return rr, nil
}

// itemError turns a per-item failure code into a remote store error.
func itemError(f pb.ItemFailure) error {
	var sentinel error
	switch f.Code {
	case pb.ItemCodeConflict:
		sentinel = common.ErrConflict
	case pb.ItemCodeZoneNotFound:
		sentinel = common.ErrZoneNotFound
	case pb.ItemCodeNotFound:
		sentinel = common.ErrNotFound
	case pb.ItemCodeBusy:
		sentinel = common.ErrBusy
	case pb.ItemCodeInvalid:
		sentinel = common.ErrorValidation
	default:
		msg := f.Message
		if msg == "" {
			msg = "remote failure"
		}
		return errors.New(f.Code + ": " + msg)
	}
	if f.Message == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, f.Message)
}
