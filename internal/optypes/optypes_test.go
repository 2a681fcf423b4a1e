package optypes

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
)

func TestSymbol(t *testing.T) {
	assert.Equal(t, "lazy::device_data", DeviceData.Symbol())
	assert.Equal(t, "lazy::constant", Constant.Symbol())
	assert.Equal(t, "lazy::cast", Cast.Symbol())
	assert.Equal(t, Scalar, must.M1(OpTypeString("scalar")))
	assert.Len(t, OpTypeValues(), int(Last)+1)
	assert.False(t, OpType(100).IsAOpType())
}
