package bigint

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/sbs/errs"
)

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 0)
	require.True(t, ok, "invalid literal %q", s)

	return v
}

func TestIntToBytes_Minimal(t *testing.T) {
	tests := []struct {
		name  string
		value int64
		want  []byte // big-endian
	}{
		{"zero", 0, []byte{0x00}},
		{"one", 1, []byte{0x01}},
		{"minus one", -1, []byte{0xFF}},
		{"max int8", 127, []byte{0x7F}},
		{"needs sign byte", 128, []byte{0x00, 0x80}},
		{"min int8", -128, []byte{0x80}},
		{"below min int8", -129, []byte{0xFF, 0x7F}},
		{"two bytes", 0x1234, []byte{0x12, 0x34}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IntToBytes(big.NewInt(tt.value), false, 0, true)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, len(tt.want), MinimalSize(big.NewInt(tt.value), true))

			back := IntFromBytes(got, false)
			require.Equal(t, tt.value, back.Int64())
		})
	}
}

func TestUintToBytes_Minimal(t *testing.T) {
	got, err := UintToBytes(big.NewInt(0), true, 0, true)
	require.NoError(t, err)
	require.Empty(t, got)
	require.Equal(t, int64(0), UintFromBytes(got, true).Int64())

	got, err = UintToBytes(big.NewInt(0x80), true, 0, true)
	require.NoError(t, err)
	require.Equal(t, []byte{0x80}, got)

	got, err = UintToBytes(big.NewInt(0x010203), true, 0, true)
	require.NoError(t, err)
	require.Equal(t, []byte{0x03, 0x02, 0x01}, got)
}

func TestUintToBytes_Negative(t *testing.T) {
	_, err := UintToBytes(big.NewInt(-1), true, 0, true)
	require.ErrorIs(t, err, errs.ErrTypeMismatch)

	_, err = UintToBytes(nil, true, 0, true)
	require.ErrorIs(t, err, errs.ErrTypeMismatch)
}

func TestFixedSize_RoundTripBounds(t *testing.T) {
	for _, size := range []int{1, 2, 3, 5, 8, 9, 16} {
		bits := uint(size * 8)
		one := big.NewInt(1)

		sMin := new(big.Int).Neg(new(big.Int).Lsh(one, bits-1))
		sMax := new(big.Int).Sub(new(big.Int).Lsh(one, bits-1), one)
		uMax := new(big.Int).Sub(new(big.Int).Lsh(one, bits), one)

		for _, le := range []bool{true, false} {
			for _, v := range []*big.Int{sMin, sMax, big.NewInt(0), big.NewInt(-1)} {
				b, err := IntToBytes(v, le, size, true)
				require.NoError(t, err)
				require.Len(t, b, size)
				require.Zero(t, v.Cmp(IntFromBytes(b, le)), "signed %s size %d le %v", v, size, le)
			}

			for _, v := range []*big.Int{big.NewInt(0), uMax} {
				b, err := UintToBytes(v, le, size, true)
				require.NoError(t, err)
				require.Len(t, b, size)
				require.Zero(t, v.Cmp(UintFromBytes(b, le)), "unsigned %s size %d le %v", v, size, le)
			}

			_, err := IntToBytes(new(big.Int).Add(sMax, one), le, size, true)
			require.ErrorIs(t, err, errs.ErrOverflow)
			_, err = IntToBytes(new(big.Int).Sub(sMin, one), le, size, true)
			require.ErrorIs(t, err, errs.ErrOverflow)
			_, err = UintToBytes(new(big.Int).Add(uMax, one), le, size, true)
			require.ErrorIs(t, err, errs.ErrOverflow)
		}
	}
}

func TestFixedSize_NoReject(t *testing.T) {
	b, err := UintToBytes(big.NewInt(0x1FF), false, 1, false)
	require.NoError(t, err)
	require.Equal(t, []byte{0xFF}, b)

	b, err = IntToBytes(big.NewInt(-0x181), false, 1, false)
	require.NoError(t, err)
	require.Equal(t, []byte{0x7F}, b)
}

func TestEndianness(t *testing.T) {
	v := mustBig(t, "0xFFDEADCAFEBABEB00B")

	le, err := UintToBytes(v, true, 9, true)
	require.NoError(t, err)
	require.Equal(t, []byte{0x0B, 0xB0, 0xBE, 0xBA, 0xFE, 0xCA, 0xAD, 0xDE, 0xFF}, le)

	be, err := UintToBytes(v, false, 9, true)
	require.NoError(t, err)
	require.Equal(t, []byte{0xFF, 0xDE, 0xAD, 0xCA, 0xFE, 0xBA, 0xBE, 0xB0, 0x0B}, be)

	require.Zero(t, v.Cmp(UintFromBytes(le, true)))
	require.Zero(t, v.Cmp(UintFromBytes(be, false)))
}

func TestLargeSigned(t *testing.T) {
	for _, s := range []string{"-12345678901234567890", "12345678901234567890", "-2361183241434822606848"} {
		v := mustBig(t, s)
		for _, le := range []bool{true, false} {
			b, err := IntToBytes(v, le, 0, true)
			require.NoError(t, err)
			require.Zero(t, v.Cmp(IntFromBytes(b, le)), s)
		}
	}
}

func TestFromBytes_Empty(t *testing.T) {
	require.Equal(t, int64(0), IntFromBytes(nil, true).Int64())
	require.Equal(t, int64(0), UintFromBytes(nil, false).Int64())
}
