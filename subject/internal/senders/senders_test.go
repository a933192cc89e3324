package senders

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krimson/eda-forensics/internal/uplink"
)

func TestHTTPSender_PutsPacket(t *testing.T) {
	var mu sync.Mutex
	var got []uplink.Packet
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		body, _ := io.ReadAll(r.Body)
		p, err := uplink.Decode(body)
		if assert.NoError(t, err) {
			mu.Lock()
			got = append(got, *p)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL+"/telemetry.json", time.Second)
	defer s.Close()

	require.NoError(t, s.Send(context.Background(), &uplink.Packet{Handshake: "123456", EDA: 0.9, Subject: "S1"}))
	require.NoError(t, s.Send(context.Background(), uplink.NewEnded("123456", 1)))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, 0.9, got[0].EDA)
	assert.True(t, got[1].Ended())
}

func TestHTTPSender_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewHTTPSender(srv.URL, time.Second).Send(context.Background(), &uplink.Packet{Handshake: "1"})
	assert.True(t, errors.Is(err, ErrSendFailed))
}

func TestJSONLRecorder_WritesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec", "subject.jsonl")
	r := NewJSONLRecorder(path)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Send(context.Background(), &uplink.Packet{Handshake: "42", EDA: float64(i)}))
	}
	assert.Equal(t, int64(3), r.GetStats().TotalLines)
	require.NoError(t, r.Close())
	assert.True(t, errors.Is(r.Send(context.Background(), &uplink.Packet{}), ErrClosed))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var p uplink.Packet
		require.NoError(t, json.Unmarshal(sc.Bytes(), &p))
		assert.Equal(t, float64(lines), p.EDA)
		lines++
	}
	assert.Equal(t, 3, lines)
}

type failingSender struct{ closed bool }

func (f *failingSender) Send(context.Context, *uplink.Packet) error { return ErrSendFailed }
func (f *failingSender) Close() error                               { f.closed = true; return nil }

func TestCompositeSender_ContinuesAfterFailure(t *testing.T) {
	bad := &failingSender{}
	rec := &recordingSender{}
	cs := NewCompositeSender(bad, rec)

	err := cs.Send(context.Background(), &uplink.Packet{Handshake: "1"})
	assert.True(t, errors.Is(err, ErrSendFailed))
	assert.Len(t, rec.packets, 1)

	require.NoError(t, cs.Close())
	assert.True(t, bad.closed)
}

type recordingSender struct{ packets []*uplink.Packet }

func (r *recordingSender) Send(_ context.Context, p *uplink.Packet) error {
	r.packets = append(r.packets, p)
	return nil
}
func (r *recordingSender) Close() error { return nil }
