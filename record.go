package appcache

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/encoding/protowire"
)

// ErrDecode is returned when a stored value matches none of the known record shapes.
var ErrDecode = errors.New("undecodable cache record")

// recordVersion prefixes every value written in the current shape.
// Values from the older shape start directly with the first field tag.
const recordVersion byte = 2

// Field numbers shared by both shapes. The older shape stops at fieldIconName.
const (
	fieldID         protowire.Number = 1
	fieldTitle      protowire.Number = 2
	fieldLowerTitle protowire.Number = 3
	fieldExec       protowire.Number = 4
	fieldExecCount  protowire.Number = 5
	fieldIconName   protowire.Number = 6
	fieldIconState  protowire.Number = 7
	fieldIconPath   protowire.Number = 8
	fieldIconData   protowire.Number = 9
)

const (
	iconFieldKind   protowire.Number = 1
	iconFieldWidth  protowire.Number = 2
	iconFieldHeight protowire.Number = 3
	iconFieldBytes  protowire.Number = 4
)

const (
	iconKindRaster uint64 = iota + 1
	iconKindRGBA
	iconKindVector
)

var errWireType = errors.New("unexpected wire type")

// record is the persisted form of an App.
type record struct {
	ID         string
	Title      string
	LowerTitle string
	Exec       string
	ExecCount  uint64
	IconName   string
	Icon       IconPath
	Data       IconData
}

func recordFromApp(app App) record {
	r := record{
		ID:         app.ID,
		Title:      app.Title,
		LowerTitle: app.LowerTitle,
		Exec:       app.Exec,
		ExecCount:  app.ExecCount,
		IconName:   app.IconName,
		Icon:       app.Icon,
	}
	r.normalize()
	return r
}

func (r *record) normalize() {
	if r.LowerTitle == "" {
		r.LowerTitle = strings.ToLower(r.Title)
	}
}

// carryIcon takes over the icon state of a previously stored record for the same app.
// The stored state wins unless the new record already names a different icon path.
func (r *record) carryIcon(old record) {
	switch {
	case r.Icon.State == IconUnresolved:
		r.Icon = old.Icon
		r.Data = old.Data
	case r.Icon == old.Icon:
		r.Data = old.Data
	}
}

// app rebuilds the runtime descriptor, including its icon handle.
func (r record) app() App {
	app := App{
		ID:         r.ID,
		Title:      r.Title,
		LowerTitle: r.LowerTitle,
		Exec:       r.Exec,
		ExecCount:  r.ExecCount,
		IconName:   r.IconName,
		Icon:       r.Icon,
	}
	if app.LowerTitle == "" {
		app.LowerTitle = strings.ToLower(app.Title)
	}

	switch {
	case r.Data != nil:
		app.Handle = handleFromData(r.ID, r.Data)
	case r.Icon.State == IconKnownAbsent:
		app.Handle = FallbackIconHandle()
	default:
		app.Handle = IconHandle{Kind: IconNotLoaded}
	}
	return app
}

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

func pixelCodec() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil)
		if zstdErr != nil {
			return
		}
		zstdDec, zstdErr = zstd.NewReader(nil)
	})
	return zstdEnc, zstdDec, zstdErr
}

func encodeRecord(r record) ([]byte, error) {
	b := []byte{recordVersion}
	b = appendString(b, fieldID, r.ID)
	b = appendString(b, fieldTitle, r.Title)
	b = appendString(b, fieldLowerTitle, r.LowerTitle)
	b = appendString(b, fieldExec, r.Exec)
	b = protowire.AppendTag(b, fieldExecCount, protowire.VarintType)
	b = protowire.AppendVarint(b, r.ExecCount)
	b = appendString(b, fieldIconName, r.IconName)
	b = protowire.AppendTag(b, fieldIconState, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Icon.State))
	b = appendString(b, fieldIconPath, r.Icon.Path)

	if r.Data != nil {
		icon, err := encodeIconData(r.Data)
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, fieldIconData, protowire.BytesType)
		b = protowire.AppendBytes(b, icon)
	}
	return b, nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func encodeIconData(data IconData) ([]byte, error) {
	var b []byte
	switch d := data.(type) {
	case RasterBytes:
		b = protowire.AppendTag(b, iconFieldKind, protowire.VarintType)
		b = protowire.AppendVarint(b, iconKindRaster)
		b = protowire.AppendTag(b, iconFieldBytes, protowire.BytesType)
		b = protowire.AppendBytes(b, d)
	case VectorBytes:
		b = protowire.AppendTag(b, iconFieldKind, protowire.VarintType)
		b = protowire.AppendVarint(b, iconKindVector)
		b = protowire.AppendTag(b, iconFieldBytes, protowire.BytesType)
		b = protowire.AppendBytes(b, d)
	case RGBA:
		if !d.valid() {
			return nil, fmt.Errorf("rgba icon %dx%d has %d bytes of pixels", d.Width, d.Height, len(d.Pix))
		}
		enc, _, err := pixelCodec()
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, iconFieldKind, protowire.VarintType)
		b = protowire.AppendVarint(b, iconKindRGBA)
		b = protowire.AppendTag(b, iconFieldWidth, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(d.Width))
		b = protowire.AppendTag(b, iconFieldHeight, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(d.Height))
		b = protowire.AppendTag(b, iconFieldBytes, protowire.BytesType)
		b = protowire.AppendBytes(b, enc.EncodeAll(d.Pix, nil))
	default:
		return nil, fmt.Errorf("unknown icon data %T", data)
	}
	return b, nil
}

// decodeRecord reads a stored value, trying the current shape first and then the
// older shape that predates icon caching.
func decodeRecord(b []byte) (record, error) {
	r, err := decodeCurrent(b)
	if err == nil {
		return r, nil
	}

	r, legacyErr := decodeLegacy(b)
	if legacyErr != nil {
		return record{}, fmt.Errorf("%w: %v (legacy: %v)", ErrDecode, err, legacyErr)
	}
	return r, nil
}

func decodeCurrent(b []byte) (record, error) {
	if len(b) == 0 || b[0] != recordVersion {
		return record{}, errors.New("missing record version")
	}

	var r record
	err := walkFields(b[1:], func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case fieldID:
			return consumeString(typ, v, &r.ID)
		case fieldTitle:
			return consumeString(typ, v, &r.Title)
		case fieldLowerTitle:
			return consumeString(typ, v, &r.LowerTitle)
		case fieldExec:
			return consumeString(typ, v, &r.Exec)
		case fieldExecCount:
			return consumeVarint(typ, v, &r.ExecCount)
		case fieldIconName:
			return consumeString(typ, v, &r.IconName)
		case fieldIconState:
			var state uint64
			n, err := consumeVarint(typ, v, &state)
			if err == nil && state > uint64(IconResolved) {
				err = fmt.Errorf("unknown icon state %d", state)
			}
			r.Icon.State = IconState(state)
			return n, err
		case fieldIconPath:
			return consumeString(typ, v, &r.Icon.Path)
		case fieldIconData:
			var raw []byte
			n, err := consumeBytes(typ, v, &raw)
			if err != nil {
				return n, err
			}
			r.Data, err = decodeIconData(raw)
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return record{}, err
	}
	if r.ID == "" {
		return record{}, errors.New("record has no app id")
	}
	if r.Icon.State == IconResolved && r.Icon.Path == "" {
		return record{}, errors.New("resolved icon without a path")
	}

	r.normalize()
	return r, nil
}

// decodeLegacy reads the older record shape: descriptor fields only, no icon state.
func decodeLegacy(b []byte) (record, error) {
	var r record
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case fieldID:
			return consumeString(typ, v, &r.ID)
		case fieldTitle:
			return consumeString(typ, v, &r.Title)
		case fieldLowerTitle:
			return consumeString(typ, v, &r.LowerTitle)
		case fieldExec:
			return consumeString(typ, v, &r.Exec)
		case fieldExecCount:
			return consumeVarint(typ, v, &r.ExecCount)
		case fieldIconName:
			return consumeString(typ, v, &r.IconName)
		}
		return 0, nil
	})
	if err != nil {
		return record{}, err
	}
	if r.ID == "" {
		return record{}, errors.New("record has no app id")
	}

	r.normalize()
	return r, nil
}

func decodeIconData(b []byte) (IconData, error) {
	var kind, width, height uint64
	var payload []byte
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case iconFieldKind:
			return consumeVarint(typ, v, &kind)
		case iconFieldWidth:
			return consumeVarint(typ, v, &width)
		case iconFieldHeight:
			return consumeVarint(typ, v, &height)
		case iconFieldBytes:
			return consumeBytes(typ, v, &payload)
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}

	switch kind {
	case iconKindRaster:
		return RasterBytes(bytes.Clone(payload)), nil
	case iconKindVector:
		return VectorBytes(bytes.Clone(payload)), nil
	case iconKindRGBA:
		_, dec, err := pixelCodec()
		if err != nil {
			return nil, err
		}
		pix, err := dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("rgba pixels: %w", err)
		}
		d := RGBA{Width: uint32(width), Height: uint32(height), Pix: pix}
		if !d.valid() {
			return nil, fmt.Errorf("rgba icon %dx%d has %d bytes of pixels", width, height, len(pix))
		}
		return d, nil
	}
	return nil, fmt.Errorf("unknown icon kind %d", kind)
}

// walkFields calls fn for each field of a protowire message.
// fn returns how many bytes of the value it consumed; 0 means the field is unknown and is skipped.
func walkFields(b []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return protowire.ParseError(m)
			}
		}
		b = b[m:]
	}
	return nil
}

func consumeString(typ protowire.Type, b []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return 0, errWireType
	}
	s, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = s
	return n, nil
}

func consumeBytes(typ protowire.Type, b []byte, dst *[]byte) (int, error) {
	if typ != protowire.BytesType {
		return 0, errWireType
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}

func consumeVarint(typ protowire.Type, b []byte, dst *uint64) (int, error) {
	if typ != protowire.VarintType {
		return 0, errWireType
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}
