// Copyright 2025 The dofs Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/benallfree/dofs/internal/store"
)

// DeviceStats is the df-style report for one instance.
type DeviceStats struct {
	DeviceSize     int64 `json:"deviceSize"`
	SpaceUsed      int64 `json:"spaceUsed"`
	SpaceAvailable int64 `json:"spaceAvailable"`
	ChunkSize      int64 `json:"chunkSize"`
}

// DeviceStats returns the instance's capacity, usage, and headroom.
func (e *Engine) DeviceStats() (*DeviceStats, error) {
	ctx := context.Background()
	deviceSize, spaceUsed, err := e.accounting(ctx)
	if err != nil {
		return nil, err
	}
	return &DeviceStats{
		DeviceSize:     deviceSize,
		SpaceUsed:      spaceUsed,
		SpaceAvailable: deviceSize - spaceUsed,
		ChunkSize:      e.chunkSize,
	}, nil
}

// SetDeviceSize changes the capacity ceiling. Shrinking below the
// current usage fails with ENOSPC and leaves the store unchanged.
func (e *Engine) SetDeviceSize(size int64) error {
	if size <= 0 {
		return EINVAL
	}
	ctx := context.Background()

	spaceUsed, err := e.db.GetMetaInt64(ctx, store.MetaSpaceUsed)
	if err != nil {
		return err
	}
	if size < spaceUsed {
		return ENOSPC
	}
	log.Infof("[engine] device size set to %d bytes", size)
	return e.db.SetMetaInt64(ctx, store.MetaDeviceSize, size)
}

// accounting reads the device size and the cached space_used meta row.
func (e *Engine) accounting(ctx context.Context) (deviceSize, spaceUsed int64, err error) {
	deviceSize, err = e.db.GetMetaInt64(ctx, store.MetaDeviceSize)
	if err != nil {
		return 0, 0, err
	}
	spaceUsed, err = e.db.GetMetaInt64(ctx, store.MetaSpaceUsed)
	if err != nil {
		return 0, 0, err
	}
	return deviceSize, spaceUsed, nil
}

// preflight rejects a mutation that would store additional bytes past
// the device size. Runs before any write so that rejection leaves the
// store unchanged.
func (e *Engine) preflight(ctx context.Context, additional int64) error {
	if additional <= 0 {
		return nil
	}
	deviceSize, spaceUsed, err := e.accounting(ctx)
	if err != nil {
		return err
	}
	if spaceUsed+additional > deviceSize {
		log.Debugf("[engine] preflight rejected: used=%d additional=%d limit=%d", spaceUsed, additional, deviceSize)
		return ENOSPC
	}
	return nil
}
