package nfse_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfse-api/internal/application/nfse"
)

func TestKeyedMutex_MismaClaveEspera(t *testing.T) {
	k := nfse.NewKeyedMutex()
	release, err := k.Acquire(context.Background(), "focusnfe:REF-1")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Acquire(waitCtx, "focusnfe:REF-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // idempotente

	r2, err := k.Acquire(context.Background(), "focusnfe:REF-1")
	require.NoError(t, err, "tras liberar se vuelve a adquirir")
	r2()
}

func TestKeyedMutex_ClavesDistintasEnParalelo(t *testing.T) {
	k := nfse.NewKeyedMutex()
	r1, err := k.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer r1()

	c, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r2, err := k.Acquire(c, "b")
	require.NoError(t, err)
	r2()
}

type failingLocker struct{ err error }

func (f failingLocker) Acquire(context.Context, string) (func(), error) { return nil, f.err }

func TestChainLocker_LiberaLoAdquiridoSiFallaElSiguiente(t *testing.T) {
	mem := nfse.NewKeyedMutex()
	boom := errors.New("redis caído")
	chain := nfse.ChainLocker{mem, failingLocker{err: boom}}

	_, err := chain.Acquire(context.Background(), "k")
	assert.ErrorIs(t, err, boom)

	c, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r, err := mem.Acquire(c, "k")
	require.NoError(t, err, "el candado en memoria quedó liberado")
	r()
}
