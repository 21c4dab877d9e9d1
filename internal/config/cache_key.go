package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key for a user's device session (login JTI).
func (r *CacheKeyStruct) UserSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// ExamPaperKey returns the cache key for an exam's stripped question paper.
func (r *CacheKeyStruct) ExamPaperKey(examID string) string {
	return fmt.Sprintf("exam:%s:paper", examID)
}

// SweepLeaseKey returns the leader-lease key for the timeout sweeper.
func (r *CacheKeyStruct) SweepLeaseKey() string {
	return "sessions:sweep:lease"
}

var CacheKey = NewCacheKeyStruct()
