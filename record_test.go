package appcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// legacyApp is the record shape written before icons were cached.
type legacyApp struct {
	ID, Title, LowerTitle, Exec, IconName string
	ExecCount                             uint64
}

func encodeLegacy(a legacyApp) []byte {
	var b []byte
	b = appendString(b, fieldID, a.ID)
	b = appendString(b, fieldTitle, a.Title)
	b = appendString(b, fieldLowerTitle, a.LowerTitle)
	b = appendString(b, fieldExec, a.Exec)
	b = protowire.AppendTag(b, fieldExecCount, protowire.VarintType)
	b = protowire.AppendVarint(b, a.ExecCount)
	b = appendString(b, fieldIconName, a.IconName)
	return b
}

func TestRecord_CurrentShape(t *testing.T) {
	in := record{
		ID:         "org.example.Paint",
		Title:      "Paint",
		LowerTitle: "paint",
		Exec:       "paint %U",
		ExecCount:  300,
		IconName:   "paint",
		Icon:       ResolvedIcon("/usr/share/icons/hicolor/48x48/apps/paint.png"),
		Data: RGBA{Width: 2, Height: 1, Pix: []byte{
			255, 0, 0, 255,
			0, 0, 255, 128,
		}},
	}

	b, err := encodeRecord(in)
	require.NoError(t, err)
	assert.Equal(t, recordVersion, b[0])

	out, err := decodeRecord(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRecord_KnownAbsentAndVector(t *testing.T) {
	absent := record{ID: "a", Title: "A", Icon: KnownAbsentIcon()}
	b, err := encodeRecord(absent)
	require.NoError(t, err)
	out, err := decodeRecord(b)
	require.NoError(t, err)
	assert.Equal(t, IconKnownAbsent, out.Icon.State)
	assert.Equal(t, "a", out.LowerTitle)
	assert.Nil(t, out.Data)

	vector := record{ID: "v", Title: "V", Icon: ResolvedIcon("/v.svg"), Data: VectorBytes(testSVG)}
	b, err = encodeRecord(vector)
	require.NoError(t, err)
	out, err = decodeRecord(b)
	require.NoError(t, err)
	assert.Equal(t, VectorBytes(testSVG), out.Data)
}

func TestRecord_LegacyShapeUpgrades(t *testing.T) {
	b := encodeLegacy(legacyApp{ID: "legacy", Title: "Legacy App", Exec: "legacy", ExecCount: 7, IconName: "legacy"})

	_, err := decodeCurrent(b)
	assert.Error(t, err)

	r, err := decodeRecord(b)
	require.NoError(t, err)
	assert.Equal(t, "legacy app", r.LowerTitle)
	assert.Equal(t, uint64(7), r.ExecCount)
	assert.Equal(t, "legacy", r.IconName)
	assert.Equal(t, IconUnresolved, r.Icon.State)
	assert.Nil(t, r.Data)
}

func TestRecord_LegacyKeepsLowerTitle(t *testing.T) {
	r, err := decodeRecord(encodeLegacy(legacyApp{ID: "x", Title: "Title", LowerTitle: "custom"}))
	require.NoError(t, err)
	assert.Equal(t, "custom", r.LowerTitle)
}

func TestRecord_DecodeErrors(t *testing.T) {
	for name, b := range map[string][]byte{
		"empty":     {},
		"garbage":   {0xff, 0xff, 0xff},
		"truncated": {recordVersion, 0x0a, 0x10, 'a'},
		"no id":     encodeLegacy(legacyApp{Title: "No ID"}),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decodeRecord(b)
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestRecord_RejectsUnknownIconState(t *testing.T) {
	b := []byte{recordVersion}
	b = appendString(b, fieldID, "x")
	b = protowire.AppendTag(b, fieldIconState, protowire.VarintType)
	b = protowire.AppendVarint(b, 9)

	_, err := decodeRecord(b)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestRecord_InvalidRGBAIsNotEncoded(t *testing.T) {
	_, err := encodeRecord(record{ID: "x", Data: RGBA{Width: 2, Height: 2, Pix: []byte{1, 2, 3}}})
	assert.Error(t, err)
}

func TestRecord_AppHandles(t *testing.T) {
	assert.Equal(t, IconNotLoaded, record{ID: "x"}.app().Handle.Kind)
	assert.Equal(t, IconFallback, record{ID: "x", Icon: KnownAbsentIcon()}.app().Handle.Kind)
	assert.Equal(t, IconVector, record{ID: "x", Data: VectorBytes(testSVG)}.app().Handle.Kind)
	assert.Equal(t, IconRaster, record{ID: "x", Data: RasterBytes{1}}.app().Handle.Kind)
	assert.Equal(t, "upper", record{ID: "x", Title: "UPPER"}.app().LowerTitle)
}

func TestRecord_CarryIcon(t *testing.T) {
	old := record{ID: "x", Icon: ResolvedIcon("/old.png"), Data: RasterBytes{1}}

	fresh := record{ID: "x"}
	fresh.carryIcon(old)
	assert.Equal(t, old.Icon, fresh.Icon)
	assert.Equal(t, old.Data, fresh.Data)

	same := record{ID: "x", Icon: ResolvedIcon("/old.png")}
	same.carryIcon(old)
	assert.Equal(t, old.Data, same.Data)

	moved := record{ID: "x", Icon: ResolvedIcon("/new.png")}
	moved.carryIcon(old)
	assert.Equal(t, "/new.png", moved.Icon.Path)
	assert.Nil(t, moved.Data)
}
