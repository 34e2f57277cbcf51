package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

const (
	defaultCacheTTL = time.Minute
	// generation counters outlive any in-flight read by a wide margin
	genTTL = 24 * time.Hour
)

var errStaleRead = errors.New("user changed while it was being read")

// CachedUserRepository is a read-through cache in front of a ports.UserRepository.
// Only FindByID is cached; writes go to the inner store first and then evict.
// Redis failures are logged and fall through to the inner store.
//
// Every eviction bumps a per-user generation counter in the same MULTI as the
// DEL. A miss snapshots the generation before reading the inner store and only
// fills the cache, under WATCH, if the generation is unchanged, so a read that
// overlaps a Save or DeleteByID never re-caches the old record.
//
// Key format: user:<id> for the entry, user:<id>:gen for the counter.
type CachedUserRepository struct {
	inner  ports.UserRepository
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewCachedUserRepository wraps inner. A non-positive ttl uses one minute.
func NewCachedUserRepository(inner ports.UserRepository, client *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedUserRepository {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedUserRepository{inner: inner, client: client, ttl: ttl, log: log}
}

// cachedUser mirrors domain.User including the hash, which the domain type hides from JSON.
type cachedUser struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"password_hash"`
	Roles        []domain.Role `json:"roles"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (r *CachedUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	raw, err := r.client.Get(ctx, key(id)).Bytes()
	switch {
	case err == nil:
		var c cachedUser
		if err := json.Unmarshal(raw, &c); err == nil {
			return c.toDomain(), nil
		}
		r.log.Warn().Str("user_id", id).Msg("discarding undecodable cache entry")
	case !errors.Is(err, redis.Nil):
		r.log.Warn().Err(err).Str("user_id", id).Msg("user cache read failed")
	}

	gen, genErr := r.generation(ctx, id)

	user, err := r.inner.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		r.log.Warn().Err(genErr).Str("user_id", id).Msg("user cache generation read failed")
		return user, nil
	}
	r.store(ctx, user, gen)
	return user, nil
}

func (r *CachedUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.inner.FindByEmail(ctx, email)
}

func (r *CachedUserRepository) FindAll(ctx context.Context) ([]*domain.User, error) {
	return r.inner.FindAll(ctx)
}

func (r *CachedUserRepository) Save(ctx context.Context, user *domain.User) (*domain.User, error) {
	saved, err := r.inner.Save(ctx, user)
	if err != nil {
		return nil, err
	}
	r.evict(ctx, saved.ID)
	return saved, nil
}

func (r *CachedUserRepository) DeleteByID(ctx context.Context, id string) error {
	if err := r.inner.DeleteByID(ctx, id); err != nil {
		return err
	}
	r.evict(ctx, id)
	return nil
}

// generation returns the eviction counter for id; a missing counter is zero.
func (r *CachedUserRepository) generation(ctx context.Context, id string) (int64, error) {
	gen, err := r.client.Get(ctx, genKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// store caches u only while the generation still equals gen.
func (r *CachedUserRepository) store(ctx context.Context, u *domain.User, gen int64) {
	raw, err := json.Marshal(fromDomain(u))
	if err != nil {
		return
	}
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey(u.ID)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleRead
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key(u.ID), raw, r.ttl)
			return nil
		})
		return err
	}, genKey(u.ID))

	switch {
	case err == nil:
	case errors.Is(err, errStaleRead), errors.Is(err, redis.TxFailedErr):
		r.log.Debug().Str("user_id", u.ID).Msg("skipping cache fill after concurrent write")
	default:
		r.log.Warn().Err(err).Str("user_id", u.ID).Msg("user cache write failed")
	}
}

func (r *CachedUserRepository) evict(ctx context.Context, id string) {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, genKey(id))
		p.Expire(ctx, genKey(id), genTTL)
		p.Del(ctx, key(id))
		return nil
	})
	if err != nil {
		r.log.Warn().Err(err).Str("user_id", id).Msg("user cache eviction failed")
	}
}

func key(id string) string {
	return "user:" + id
}

func genKey(id string) string {
	return key(id) + ":gen"
}

func fromDomain(u *domain.User) cachedUser {
	return cachedUser{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Roles:        append([]domain.Role(nil), u.Roles...),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (c cachedUser) toDomain() *domain.User {
	return &domain.User{
		ID:           c.ID,
		Name:         c.Name,
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		Roles:        c.Roles,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}
