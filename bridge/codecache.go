/*
 *
 * protobridge - protobuf definition graphs and write-handler caches
 * Copyright (C) 2026 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package bridge

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/proto"

	"github.com/liuxd6825/protobridge/def"
	"github.com/liuxd6825/protobridge/handlers"
)

// CodeCache builds and caches handlers that populate protobuf messages,
// one handler set per message definition.
//
// A CodeCache is NOT safe for concurrent use; see SyncCodeCache.
type CodeCache struct {
	logger logrus.FieldLogger
	defs   *DefBuilder

	cache    map[*def.MessageDef]*handlers.Handlers
	toFreeze []*handlers.Handlers
}

// NewCodeCache returns an empty cache with its own DefBuilder, configured
// with opts. A nil logger discards all output.
func NewCodeCache(logger logrus.FieldLogger, opts ...DefBuilderOption) *CodeCache {
	defs := NewDefBuilder(logger, opts...)
	return &CodeCache{
		logger: defs.logger.WithField("component", "codecache"),
		defs:   defs,
		cache:  make(map[*def.MessageDef]*handlers.Handlers),
	}
}

// GetWriteHandlers returns frozen handlers that populate messages of m's
// type, building them on first use. Weak fields are resolved through m.
//
// Repeated calls for the same message type return the same handlers.
func (c *CodeCache) GetWriteHandlers(m proto.Message) (*handlers.Handlers, error) {
	md, err := c.defs.GetMessageDefExpandWeak(m)
	if err != nil {
		return nil, err
	}
	h, err := c.getMaybeUnfrozenWriteHandlers(md, m)
	if err = c.freeze(err); err != nil {
		return nil, err
	}
	return h, nil
}

// DefBuilder returns the builder the cache builds definitions with.
func (c *CodeCache) DefBuilder() *DefBuilder {
	return c.defs
}

// Len returns the number of cached handler sets.
func (c *CodeCache) Len() int {
	return len(c.cache)
}

func (c *CodeCache) getMaybeUnfrozenWriteHandlers(md *def.MessageDef, m proto.Message) (*handlers.Handlers, error) {
	if h, ok := c.cache[md]; ok {
		return h, nil
	}

	h, err := handlers.New(md)
	if err != nil {
		return nil, err
	}
	// Cached before sub-message handlers are built, so that a message type
	// containing itself finds these handlers instead of recursing forever.
	c.addToCache(md, h)

	for _, fd := range c.defs.fieldDescriptors(m.ProtoReflect().Descriptor()) {
		f := md.FindFieldByNumber(fd.Number())
		if f == nil {
			return nil, fmt.Errorf("%w: %s has no definition in %s", ErrFieldNotInMessage, fd.FullName(), md.FullName())
		}
		if err = setWriteHandlers(m, fd, f, h); err != nil {
			return nil, err
		}

		sub := f.MessageSubDef()
		if sub == nil {
			continue
		}
		prototype, err := TryGetFieldPrototype(m, fd)
		if err != nil {
			return nil, err
		}
		if prototype == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotSubmessage, fd.FullName())
		}
		subh, err := c.getMaybeUnfrozenWriteHandlers(sub, prototype)
		if err != nil {
			return nil, err
		}
		if err = h.SetSubHandlers(f, subh); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (c *CodeCache) freeze(err error) error {
	pending := c.toFreeze
	c.toFreeze = nil
	if len(pending) == 0 && err == nil {
		return nil
	}
	if err == nil {
		err = handlers.Freeze(pending...)
	}
	if err != nil {
		for _, h := range pending {
			delete(c.cache, h.MessageDef())
		}
		c.logger.WithError(err).Debugf("Dropped %d handler sets of a failed build", len(pending))
		return err
	}
	c.logger.Debugf("Froze %d handler sets", len(pending))
	return nil
}

func (c *CodeCache) addToCache(md *def.MessageDef, h *handlers.Handlers) {
	if _, ok := c.cache[md]; ok {
		panic(fmt.Sprintf("protobridge: handlers of %s are already cached", md.FullName()))
	}
	c.cache[md] = h
	c.toFreeze = append(c.toFreeze, h)
}

// SyncCodeCache guards a CodeCache with a mutex, for callers that share
// one cache between goroutines. The handlers it returns are frozen and can
// be used concurrently without further locking.
type SyncCodeCache struct {
	mu    sync.Mutex
	cache *CodeCache
}

// NewSyncCodeCache returns an empty, lock-guarded cache.
func NewSyncCodeCache(logger logrus.FieldLogger, opts ...DefBuilderOption) *SyncCodeCache {
	return &SyncCodeCache{cache: NewCodeCache(logger, opts...)}
}

// GetWriteHandlers is CodeCache.GetWriteHandlers under the lock.
func (s *SyncCodeCache) GetWriteHandlers(m proto.Message) (*handlers.Handlers, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cache.GetWriteHandlers(m)
}
