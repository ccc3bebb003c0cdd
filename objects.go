package nsstore

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/nsstore/codec"
)

// Object and Serialized helpers are package-level generic functions rather
// than Storage methods (Go methods cannot take type parameters). The Object
// forms take a Descriptor that extracts (context, key, value, expiration)
// from an application value; the Serialized forms take a codec that renders
// the value as the stored string.

func CreateObject[T any](ctx context.Context, s Storage, d Descriptor[T], v T) (bool, error) {
	val, err := d.Value(v)
	if err != nil {
		return false, fmt.Errorf("nsstore: descriptor value: %w", err)
	}
	return s.Create(ctx, d.Context(v), d.Key(v), val, d.Expiration(v))
}

func ReadObject[T any](ctx context.Context, s Storage, d Descriptor[T], v T) (Record, bool, error) {
	return s.Read(ctx, d.Context(v), d.Key(v))
}

func UpdateObject[T any](ctx context.Context, s Storage, d Descriptor[T], v T) (bool, error) {
	val, err := d.Value(v)
	if err != nil {
		return false, fmt.Errorf("nsstore: descriptor value: %w", err)
	}
	return s.Update(ctx, d.Context(v), d.Key(v), val, d.Expiration(v))
}

func UpdateObjectWithVersion[T any](ctx context.Context, s Storage, version uint64, d Descriptor[T], v T) (uint64, bool, error) {
	val, err := d.Value(v)
	if err != nil {
		return 0, false, fmt.Errorf("nsstore: descriptor value: %w", err)
	}
	return s.UpdateWithVersion(ctx, version, d.Context(v), d.Key(v), val, d.Expiration(v))
}

func UpdateObjectExpiration[T any](ctx context.Context, s Storage, d Descriptor[T], v T) (bool, error) {
	return s.UpdateExpiration(ctx, d.Context(v), d.Key(v), d.Expiration(v))
}

func DeleteObject[T any](ctx context.Context, s Storage, d Descriptor[T], v T) (bool, error) {
	return s.Delete(ctx, d.Context(v), d.Key(v))
}

func DeleteObjectWithVersion[T any](ctx context.Context, s Storage, version uint64, d Descriptor[T], v T) (bool, error) {
	return s.DeleteWithVersion(ctx, version, d.Context(v), d.Key(v))
}

func CreateSerialized[T any](ctx context.Context, s Storage, storageContext, key string, v T, c codec.Codec[T], expiration int64) (bool, error) {
	b, err := c.Encode(v)
	if err != nil {
		return false, fmt.Errorf("nsstore: serialize: %w", err)
	}
	return s.Create(ctx, storageContext, key, string(b), expiration)
}

func UpdateSerialized[T any](ctx context.Context, s Storage, storageContext, key string, v T, c codec.Codec[T], expiration int64) (bool, error) {
	b, err := c.Encode(v)
	if err != nil {
		return false, fmt.Errorf("nsstore: serialize: %w", err)
	}
	return s.Update(ctx, storageContext, key, string(b), expiration)
}

func UpdateSerializedWithVersion[T any](ctx context.Context, s Storage, version uint64, storageContext, key string, v T, c codec.Codec[T], expiration int64) (uint64, bool, error) {
	b, err := c.Encode(v)
	if err != nil {
		return 0, false, fmt.Errorf("nsstore: serialize: %w", err)
	}
	return s.UpdateWithVersion(ctx, version, storageContext, key, string(b), expiration)
}

// ReadSerialized reads and decodes a record in one step. The record's
// Version still applies to the stored string form.
func ReadSerialized[T any](ctx context.Context, s Storage, storageContext, key string, c codec.Codec[T]) (T, Record, bool, error) {
	var zero T
	rec, ok, err := s.Read(ctx, storageContext, key)
	if err != nil || !ok {
		return zero, Record{}, false, err
	}
	v, err := c.Decode([]byte(rec.Value))
	if err != nil {
		return zero, Record{}, false, fmt.Errorf("nsstore: deserialize: %w", err)
	}
	return v, rec, true, nil
}
