// Package cache backs the classification cache with an expirable LRU.
// The underlying store is safe for concurrent use, which the port
// requires: documents with the same fingerprint may resolve in
// parallel.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mkovalenko/docupipe/internal/core/domain"
)

type ClassificationLRU struct {
	store *expirable.LRU[string, domain.ClassificationResult]
}

func NewClassificationLRU(size int, ttl time.Duration) *ClassificationLRU {
	if size <= 0 {
		size = 1024
	}
	return &ClassificationLRU{
		store: expirable.NewLRU[string, domain.ClassificationResult](size, nil, ttl),
	}
}

func (c *ClassificationLRU) Get(fingerprint string) (domain.ClassificationResult, bool) {
	return c.store.Get(fingerprint)
}

func (c *ClassificationLRU) Set(fingerprint string, result domain.ClassificationResult) {
	c.store.Add(fingerprint, result)
}
