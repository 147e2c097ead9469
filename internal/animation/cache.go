// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"image"
	"sync"
)

// Cache is a rendered frame cache keyed by frame index. The composite at a
// frame index is the same in every loop of an animation, so the conversion
// of each composite need only be done once per animation.
type Cache struct {
	miss func(image.Image) (image.Image, error)

	mu    sync.Mutex
	cache map[int]image.Image
}

// NewCache returns a Cache that converts composites with miss. The image
// passed to miss is reused after miss returns, so miss must not retain it.
func NewCache(miss func(image.Image) (image.Image, error)) *Cache {
	return &Cache{
		miss:  miss,
		cache: make(map[int]image.Image),
	}
}

// Len returns the number of cached frames.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Convert returns the cached conversion of the composite for the frame
// index, converting and caching img if there is none. If c is nil, img is
// returned.
func (c *Cache) Convert(idx int, img image.Image) (image.Image, error) {
	if r, ok := c.get(idx); ok {
		return r, nil
	}
	return c.put(idx, img)
}

// get returns the cached image for the frame index.
func (c *Cache) get(idx int) (image.Image, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	r, ok := c.cache[idx]
	c.mu.Unlock()
	return r, ok
}

// put converts img and caches the result for the frame index. If c is nil,
// img is returned.
func (c *Cache) put(idx int, img image.Image) (image.Image, error) {
	if c == nil {
		return img, nil
	}
	r, err := c.miss(img)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.cache[idx] = r
	c.mu.Unlock()
	return r, nil
}
