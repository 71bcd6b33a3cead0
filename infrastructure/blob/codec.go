// Package blob stores cache results as compressed JSON files.
package blob

import (
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/zstd"
)

// json keeps full float precision so derived grids survive a round trip.
var json = jsoniter.Config{
	EscapeHTML:              false,
	MarshalFloatWith6Digits: false,
	CaseSensitive:           true,
	SortMapKeys:             true,
}.Froze()

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder
	encoderErr  error
)

var decoderPool = sync.Pool{
	New: func() any {
		d, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return d
	},
}

func sharedEncoder() (*zstd.Encoder, error) {
	encoderOnce.Do(func() {
		encoder, encoderErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	return encoder, encoderErr
}

// Encode serializes v as zstd compressed JSON.
func Encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	enc, err := sharedEncoder()
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	return enc.EncodeAll(raw, nil), nil
}

// Decode reverses Encode into v.
func Decode(data []byte, v any) error {
	dec, ok := decoderPool.Get().(*zstd.Decoder)
	if !ok || dec == nil {
		return fmt.Errorf("zstd decoder unavailable")
	}
	defer decoderPool.Put(dec)

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}
