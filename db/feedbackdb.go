/*
 * Copyright 2011 Nan Deng
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

// Package db records the device tokens the feedback service reported as unreachable.
package db

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis"
	cache "github.com/uniqush/cache2"
	"github.com/uniqush/log"

	"github.com/uniqush/uniqush-apns/srv/apns/common"
)

const (
	UnreachablePrefix string = "apns.unreachable:" // STRING (prefix of) - Maps a device token to the last feedback timestamp reported for it.
	UnreachableSet    string = "apns.unreachable{0}" // SET - The device tokens that have a feedback timestamp.

	defaultCacheSize = 1024
)

// FeedbackDatabase stores feedback records.
type FeedbackDatabase interface {
	// AddFeedback stores rec unless a record at least as recent is already stored for the token.
	// It reports whether the store changed.
	AddFeedback(rec *common.FeedbackRecord) (bool, error)
	// GetFeedback returns the stored record for token, or nil.
	GetFeedback(token string) (*common.FeedbackRecord, error)
	// ListUnreachable returns every stored record, sorted by token.
	ListUnreachable() ([]*common.FeedbackRecord, error)
	RemoveFeedback(token string) error
}

type redisClient interface {
	Del(keys ...string) *redis.IntCmd
	Get(key string) *redis.StringCmd
	SAdd(key string, members ...interface{}) *redis.IntCmd
	SRem(key string, members ...interface{}) *redis.IntCmd
	Set(key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SMembers(key string) *redis.StringSliceCmd
}

var _ redisClient = &redis.Client{}
var _ FeedbackDatabase = &FeedbackRedisDB{}

// FeedbackRedisDB keeps one timestamp per token in redis, plus the set of tokens.
type FeedbackRedisDB struct {
	client redisClient
	// seen maps a token to the newest timestamp written by this process.
	seen   *cache.SimpleCache
	logger log.Logger
}

func buildRedisClient(c *DatabaseConfig) (redisClient, error) {
	if c == nil {
		return nil, errors.New("Invalid Database Config")
	}
	if strings.ToLower(c.Engine) != "redis" {
		return nil, fmt.Errorf("Unsupported Database Engine %q", c.Engine)
	}

	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port <= 0 {
		c.Port = 6379
	}
	if c.Name == "" {
		c.Name = "0"
	}

	db, err := strconv.ParseInt(c.Name, 10, 64)
	if err != nil {
		db = 0
	}
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Password: c.Password,
		DB:       int(db),
	}), nil
}

func buildFeedbackRedisDB(client redisClient, cacheSize int, logger log.Logger) *FeedbackRedisDB {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	return &FeedbackRedisDB{
		client: client,
		seen:   cache.NewSimple(cacheSize),
		logger: logger,
	}
}

// NewFeedbackDatabase connects to the store described by c. logger may be nil.
func NewFeedbackDatabase(c *DatabaseConfig, logger log.Logger) (*FeedbackRedisDB, error) {
	client, err := buildRedisClient(c)
	if err != nil {
		return nil, err
	}
	return buildFeedbackRedisDB(client, c.CacheSize, logger), nil
}

func (r *FeedbackRedisDB) debugf(format string, v ...interface{}) {
	if r.logger != nil {
		r.logger.Debugf(format, v...)
	}
}

func (r *FeedbackRedisDB) AddFeedback(rec *common.FeedbackRecord) (bool, error) {
	if rec == nil || rec.Token == "" {
		return false, errors.New("AddFeedback: empty record")
	}
	if ts, ok := r.seen.Get(rec.Token).(uint32); ok && ts >= rec.Timestamp {
		return false, nil
	}
	stored, err := r.GetFeedback(rec.Token)
	if err != nil {
		return false, err
	}
	if stored != nil && stored.Timestamp >= rec.Timestamp {
		r.seen.Set(rec.Token, stored.Timestamp)
		r.debugf("Token=%v Ignoring feedback at %v, already have %v", rec.Token, rec.Timestamp, stored.Timestamp)
		return false, nil
	}

	if err := r.client.Set(UnreachablePrefix+rec.Token, strconv.FormatUint(uint64(rec.Timestamp), 10), 0).Err(); err != nil {
		return false, fmt.Errorf("AddFeedback %q failed: %v", rec.Token, err)
	}
	if err := r.client.SAdd(UnreachableSet, rec.Token).Err(); err != nil {
		return false, fmt.Errorf("AddFeedback %q set update failed: %v", rec.Token, err)
	}
	r.seen.Set(rec.Token, rec.Timestamp)
	r.debugf("Token=%v Stored feedback at %v", rec.Token, rec.Timestamp)
	return true, nil
}

func (r *FeedbackRedisDB) GetFeedback(token string) (*common.FeedbackRecord, error) {
	s, err := r.client.Get(UnreachablePrefix + token).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetFeedback %q failed: %v", token, err)
	}
	ts, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("GetFeedback %q: corrupt timestamp %q: %v", token, s, err)
	}
	return &common.FeedbackRecord{Timestamp: uint32(ts), Token: token}, nil
}

func (r *FeedbackRedisDB) ListUnreachable() ([]*common.FeedbackRecord, error) {
	tokens, err := r.client.SMembers(UnreachableSet).Result()
	if err != nil {
		return nil, fmt.Errorf("ListUnreachable failed: %v", err)
	}
	sort.Strings(tokens)
	ret := make([]*common.FeedbackRecord, 0, len(tokens))
	for _, token := range tokens {
		rec, err := r.GetFeedback(token)
		if err != nil {
			return nil, err
		}
		// The set and the key are written separately; skip members whose key is gone.
		if rec != nil {
			ret = append(ret, rec)
		}
	}
	return ret, nil
}

func (r *FeedbackRedisDB) RemoveFeedback(token string) error {
	r.seen.Delete(token)
	if err := r.client.Del(UnreachablePrefix + token).Err(); err != nil {
		return fmt.Errorf("RemoveFeedback %q failed: %v", token, err)
	}
	if err := r.client.SRem(UnreachableSet, token).Err(); err != nil {
		return fmt.Errorf("RemoveFeedback %q set update failed: %v", token, err)
	}
	return nil
}
