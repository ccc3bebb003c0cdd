package nsstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/unkn0wn-root/nsstore/backend"
	"github.com/unkn0wn-root/nsstore/internal/keys"
	"github.com/unkn0wn-root/nsstore/internal/wire"
)

const defaultNamespaceAttempts = 8

type storage struct {
	conn  backend.Conn
	caps  Capabilities
	dir   *directory
	w     waiter
	log   Logger
	hooks Hooks
}

func newStorage(opts Options) (*storage, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("nsstore: backend is required")
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("nsstore: operation timeout must be positive")
	}

	s := &storage{
		conn: opts.Backend,
	}

	// defaults
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	s.caps = Capabilities{
		MaxKeyLength:   coalesce(opts.Capabilities.MaxKeyLength, DefaultMaxKeyLength),
		MaxValueLength: coalesce(opts.Capabilities.MaxValueLength, DefaultMaxValueLength),
	}
	s.w = waiter{timeout: opts.Timeout, hooks: s.hooks}
	s.dir = &directory{
		conn:     opts.Backend,
		w:        s.w,
		log:      s.log,
		hooks:    s.hooks,
		tokens:   coalesce[TokenSource](opts.Tokens, randTokens{}),
		attempts: coalesce(opts.NamespaceAttempts, defaultNamespaceAttempts),
	}
	return s, nil
}

func (s *storage) Capabilities() Capabilities { return s.caps }

func (s *storage) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

func (s *storage) Create(ctx context.Context, storageContext, key, value string, expiration int64) (bool, error) {
	if err := checkRecordArgs(storageContext, key, value, expiration); err != nil {
		return false, err
	}
	namespace, err := s.dir.Resolve(ctx, storageContext)
	if err != nil {
		return false, err
	}
	cacheKey := keys.Key(namespace, key)
	s.log.Debug("creating new entry", Fields{"cacheKey": cacheKey, "context": storageContext, "key": key})
	payload := wire.EncodeRecord(expiration, []byte(value))
	return await(ctx, s.w, "add", cacheKey, func(c context.Context) (bool, error) {
		return s.conn.Add(c, cacheKey, payload, expirationSeconds(expiration))
	})
}

func (s *storage) Read(ctx context.Context, storageContext, key string) (Record, bool, error) {
	if err := checkContextKey(storageContext, key); err != nil {
		return Record{}, false, err
	}
	namespace, ok, err := s.dir.Lookup(ctx, storageContext)
	if err != nil {
		return Record{}, false, err
	}
	if !ok {
		s.log.Debug("namespace for context does not exist", Fields{"context": storageContext})
		return Record{}, false, nil
	}
	cacheKey := keys.Key(namespace, key)
	s.log.Debug("reading entry", Fields{"cacheKey": cacheKey, "context": storageContext, "key": key})
	res, err := await(ctx, s.w, "get", cacheKey, func(c context.Context) (getResult, error) {
		v, tok, ok, err := s.conn.Get(c, cacheKey)
		return getResult{value: v, token: tok, ok: ok}, err
	})
	if err != nil {
		return Record{}, false, err
	}
	if !res.ok {
		return Record{}, false, nil
	}
	exp, val, err := wire.DecodeRecord(res.value)
	if err != nil {
		return Record{}, false, &OpError{Op: "get", Key: cacheKey, Err: err}
	}
	return Record{Value: string(val), Expiration: exp, Version: res.token}, true, nil
}

func (s *storage) ReadVersion(ctx context.Context, storageContext, key string, version uint64) (Record, bool, bool, error) {
	if err := checkVersion(version); err != nil {
		return Record{}, false, false, err
	}
	rec, ok, err := s.Read(ctx, storageContext, key)
	if err != nil || !ok {
		return Record{}, false, false, err
	}
	if rec.Version != version {
		return Record{}, false, true, nil
	}
	return rec, true, false, nil
}

func (s *storage) Update(ctx context.Context, storageContext, key, value string, expiration int64) (bool, error) {
	if err := checkRecordArgs(storageContext, key, value, expiration); err != nil {
		return false, err
	}
	namespace, ok, err := s.dir.Lookup(ctx, storageContext)
	if err != nil {
		return false, err
	}
	if !ok {
		s.log.Debug("namespace for context does not exist", Fields{"context": storageContext})
		return false, nil
	}
	cacheKey := keys.Key(namespace, key)
	s.log.Debug("updating entry", Fields{"cacheKey": cacheKey, "context": storageContext, "key": key})
	payload := wire.EncodeRecord(expiration, []byte(value))
	return await(ctx, s.w, "replace", cacheKey, func(c context.Context) (bool, error) {
		return s.conn.Replace(c, cacheKey, payload, expirationSeconds(expiration))
	})
}

func (s *storage) UpdateWithVersion(ctx context.Context, version uint64, storageContext, key, value string, expiration int64) (uint64, bool, error) {
	if err := checkVersion(version); err != nil {
		return 0, false, err
	}
	if err := checkRecordArgs(storageContext, key, value, expiration); err != nil {
		return 0, false, err
	}
	namespace, ok, err := s.dir.Lookup(ctx, storageContext)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		s.log.Debug("namespace for context does not exist", Fields{"context": storageContext})
		return 0, false, nil
	}
	cacheKey := keys.Key(namespace, key)
	s.log.Debug("updating entry with version", Fields{"cacheKey": cacheKey, "context": storageContext, "key": key, "version": version})
	payload := wire.EncodeRecord(expiration, []byte(value))
	outcome, err := await(ctx, s.w, "cas", cacheKey, func(c context.Context) (backend.CASOutcome, error) {
		return s.conn.CompareAndSwap(c, cacheKey, payload, expirationSeconds(expiration), version)
	})
	if err != nil {
		return 0, false, err
	}
	switch outcome {
	case backend.CASStored:
		// The CAS write does not return the resulting token; a follow-up
		// read is required. The record can be mutated or deleted by a third
		// party inside that window.
		res, err := await(ctx, s.w, "get", cacheKey, func(c context.Context) (getResult, error) {
			_, tok, ok, err := s.conn.Get(c, cacheKey)
			return getResult{token: tok, ok: ok}, err
		})
		if err != nil {
			return 0, false, err
		}
		if !res.ok {
			return 0, false, nil
		}
		return res.token, true, nil
	case backend.CASConflict:
		s.hooks.VersionConflict(cacheKey, "update_version")
		return 0, false, ErrVersionMismatch
	default:
		return 0, false, nil
	}
}

func (s *storage) UpdateExpiration(ctx context.Context, storageContext, key string, expiration int64) (bool, error) {
	if err := checkContextKey(storageContext, key); err != nil {
		return false, err
	}
	if err := checkExpiration(expiration); err != nil {
		return false, err
	}
	namespace, ok, err := s.dir.Lookup(ctx, storageContext)
	if err != nil {
		return false, err
	}
	if !ok {
		s.log.Debug("namespace for context does not exist", Fields{"context": storageContext})
		return false, nil
	}
	cacheKey := keys.Key(namespace, key)
	s.log.Debug("updating expiration", Fields{"cacheKey": cacheKey, "context": storageContext, "key": key})
	return await(ctx, s.w, "touch", cacheKey, func(c context.Context) (bool, error) {
		return s.conn.Touch(c, cacheKey, expirationSeconds(expiration))
	})
}

func (s *storage) Delete(ctx context.Context, storageContext, key string) (bool, error) {
	if err := checkContextKey(storageContext, key); err != nil {
		return false, err
	}
	namespace, ok, err := s.dir.Lookup(ctx, storageContext)
	if err != nil {
		return false, err
	}
	if !ok {
		s.log.Debug("namespace for context does not exist", Fields{"context": storageContext})
		return false, nil
	}
	cacheKey := keys.Key(namespace, key)
	s.log.Debug("deleting entry", Fields{"cacheKey": cacheKey, "context": storageContext, "key": key})
	return await(ctx, s.w, "delete", cacheKey, func(c context.Context) (bool, error) {
		return s.conn.Delete(c, cacheKey)
	})
}

func (s *storage) DeleteWithVersion(ctx context.Context, version uint64, storageContext, key string) (bool, error) {
	if err := checkVersion(version); err != nil {
		return false, err
	}
	if err := checkContextKey(storageContext, key); err != nil {
		return false, err
	}
	namespace, ok, err := s.dir.Lookup(ctx, storageContext)
	if err != nil {
		return false, err
	}
	if !ok {
		s.log.Debug("namespace for context does not exist", Fields{"context": storageContext})
		return false, nil
	}
	cacheKey := keys.Key(namespace, key)
	s.log.Debug("deleting entry with version", Fields{"cacheKey": cacheKey, "context": storageContext, "key": key, "version": version})
	outcome, err := await(ctx, s.w, "delete", cacheKey, func(c context.Context) (backend.CASOutcome, error) {
		return s.conn.DeleteWithToken(c, cacheKey, version)
	})
	if err != nil {
		return false, err
	}
	switch outcome {
	case backend.CASStored:
		return true, nil
	case backend.CASConflict:
		s.hooks.VersionConflict(cacheKey, "delete_version")
		return false, ErrVersionMismatch
	default:
		return false, nil
	}
}

func (s *storage) DeleteContext(ctx context.Context, storageContext string) error {
	if err := checkContext(storageContext); err != nil {
		return err
	}
	namespace, ok, err := s.dir.Lookup(ctx, storageContext)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug("namespace for context does not exist, context values effectively deleted", Fields{"context": storageContext})
		return nil
	}
	// Records under the namespace are not enumerated; they are orphaned and
	// expire via their own TTLs, if any.
	fwdErr, revErr := s.dir.DeleteMappings(ctx, storageContext, namespace)
	if fwdErr != nil || revErr != nil {
		return &DeleteContextError{Context: storageContext, ForwardErr: fwdErr, ReverseErr: revErr}
	}
	return nil
}

func (s *storage) UpdateContextExpiration(ctx context.Context, storageContext string, expiration int64) error {
	if err := checkContext(storageContext); err != nil {
		return err
	}
	if err := checkExpiration(expiration); err != nil {
		return err
	}
	// No group-TTL primitive exists over a simulated namespace; fail fast
	// rather than approximate.
	return fmt.Errorf("%w: updateContextExpiration", ErrUnsupported)
}

func (s *storage) Reap(ctx context.Context, storageContext string) error {
	return checkContext(storageContext)
}

func checkContext(storageContext string) error {
	if strings.TrimSpace(storageContext) == "" {
		return fmt.Errorf("nsstore: context cannot be empty")
	}
	return nil
}

func checkContextKey(storageContext, key string) error {
	if err := checkContext(storageContext); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("nsstore: key cannot be empty")
	}
	return nil
}

func checkRecordArgs(storageContext, key, value string, expiration int64) error {
	if err := checkContextKey(storageContext, key); err != nil {
		return err
	}
	if value == "" {
		return fmt.Errorf("nsstore: value cannot be empty")
	}
	return checkExpiration(expiration)
}

func checkExpiration(expiration int64) error {
	if expiration < 0 {
		return fmt.Errorf("nsstore: expiration must be 0 or a positive instant in unix milliseconds")
	}
	return nil
}

func checkVersion(version uint64) error {
	if version == 0 {
		return fmt.Errorf("nsstore: version must be positive")
	}
	return nil
}
