package transport

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"SaveKeeper/modules/kit/errx"
	"SaveKeeper/modules/kit/logx"
	"SaveKeeper/modules/kit/tracex"
)

func TestCodeForError_按错误码映射(t *testing.T) {
	assert.Equal(t, OK, CodeForError(nil))
	assert.Equal(t, ConfigError, CodeForError(errx.ErrConfig.WithMsg("bad slot")))
	assert.Equal(t, FormatError, CodeForError(fmt.Errorf("wrap: %w", errx.ErrFormat)))
	assert.Equal(t, IOFailure, CodeForError(errx.ErrIO.WithCause(errors.New("disk"))))
	assert.Equal(t, SystemError, CodeForError(errors.New("plain")))
}

func TestAccessLog_上下文携带业务码与traceID(t *testing.T) {
	ctx := WithAccessLog(context.Background(), "GET /slots")
	al := FromContext(ctx)
	require.NotNil(t, al)
	_, ok := tracex.TraceIDFrom(ctx)
	assert.True(t, ok)

	SetBizCode(ctx, BizCode(ConfigError))
	SetErrorReason(ctx, "")
	SetErrorReason(ctx, "SLOT_INVALID")
	SetSlot(ctx, "_Default")
	assert.Equal(t, BizCode(ConfigError), al.BizCode)
	assert.Equal(t, "SLOT_INVALID", al.ErrorReason)
	assert.Equal(t, "_Default", al.Slot)

	assert.Nil(t, FromContext(context.Background()))
}

func TestFinish_未设置业务码时按状态推断(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := logx.NewZapLogger(zap.New(core))

	Finish(WithAccessLog(context.Background(), "GET /slots"), l, 200)
	Finish(WithAccessLog(context.Background(), "GET /missing"), l, 404)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.EqualValues(t, OK, entries[0].ContextMap()["biz_code"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.EqualValues(t, SystemError, entries[1].ContextMap()["biz_code"])
}
