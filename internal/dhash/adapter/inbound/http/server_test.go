package http_handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/internal/dhash/service/mocks"
	"github.com/anthanhphan/go-dhash-replication/pkg/merkle"
	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
	"github.com/anthanhphan/go-dhash-replication/pkg/shard"
)

func newTestServer(t *testing.T, kind domain.Kind) (*Server, *mocks.MockReplicationService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockReplicationService(ctrl)
	svc.EXPECT().Kind().Return(kind).AnyTimes()
	return NewServer(":0", svc), svc
}

func do(t *testing.T, s *Server, method, path string, body []byte) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestParseKey(t *testing.T) {
	assert.Equal(t, ring.ID(0xdeadbeef), parseKey("00000000deadbeef"))
	assert.Equal(t, ring.KeyID([]byte("hello")), parseKey("hello"))
	assert.Equal(t, ring.KeyID([]byte("zzzzzzzzzzzzzzzz")), parseKey("zzzzzzzzzzzzzzzz"))
}

func TestHandleStore(t *testing.T) {
	s, svc := newTestServer(t, domain.KindVersioned)
	block := domain.EncodeStamped(7, []byte("v"))

	svc.EXPECT().Encode([]byte("v")).Return(block, nil)
	svc.EXPECT().Store(gomock.Any(), ring.KeyID([]byte("k")), block).Return(nil)

	resp := do(t, s, http.MethodPut, "/blocks/k", []byte("v"))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, ring.KeyID([]byte("k")).String(), body["id"])
	assert.Equal(t, block.Digest().String(), body["digest"])
}

func TestHandleStore_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"stale", domain.ErrStaleBlock, http.StatusConflict},
		{"invalid", domain.ErrInvalidBlock, http.StatusBadRequest},
		{"storage", domain.ErrLocalStorage, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, svc := newTestServer(t, domain.KindVersioned)
			svc.EXPECT().Encode(gomock.Any()).Return(domain.EncodeStamped(1, nil), nil)
			svc.EXPECT().Store(gomock.Any(), gomock.Any(), gomock.Any()).Return(tt.err)

			resp := do(t, s, http.MethodPut, "/blocks/k", []byte("x"))
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestHandleStore_ImmutableContentKey(t *testing.T) {
	s, svc := newTestServer(t, domain.KindImmutable)
	block := domain.Block("content")

	svc.EXPECT().Encode([]byte("content")).Return(block, nil)
	svc.EXPECT().Store(gomock.Any(), domain.ImmutableKey(block), block).Return(nil)

	resp := do(t, s, http.MethodPut, "/blocks/-", []byte("content"))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestHandleFetch(t *testing.T) {
	s, svc := newTestServer(t, domain.KindVersioned)
	id := ring.ID(0x1234)

	svc.EXPECT().Fetch(gomock.Any(), id).Return(domain.EncodeStamped(9, []byte("payload")), nil)

	resp := do(t, s, http.MethodGet, "/blocks/"+id.String(), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "9", resp.Header.Get(headerStamp))
	assert.Equal(t, id.String(), resp.Header.Get(headerID))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
}

func TestHandleFetch_NotFound(t *testing.T) {
	s, svc := newTestServer(t, domain.KindVersioned)
	svc.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil, domain.ErrBlockNotFound)

	resp := do(t, s, http.MethodGet, "/blocks/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleRemove(t *testing.T) {
	s, svc := newTestServer(t, domain.KindVersioned)
	svc.EXPECT().Remove(gomock.Any(), ring.KeyID([]byte("gone"))).Return(nil)

	resp := do(t, s, http.MethodDelete, "/blocks/gone", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAdminRoutes(t *testing.T) {
	s, svc := newTestServer(t, domain.KindVersioned)

	root := merkle.RangeDigest{Range: merkle.RootRange, Digest: merkle.HashBlock([]byte("r"))}
	svc.EXPECT().MerkleRoot().Return(root)
	resp := do(t, s, http.MethodGet, "/merkle/root", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rootBody map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rootBody))
	assert.Equal(t, root.Digest.String(), rootBody["digest"])

	svc.EXPECT().Replicas().Return([]shard.Node{{ID: "b", Addr: "b:1", Position: 2}})
	resp = do(t, s, http.MethodGet, "/replicas", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var replicas struct {
		Replicas []shard.Node `json:"replicas"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&replicas))
	require.Len(t, replicas.Replicas, 1)
	assert.Equal(t, "b", replicas.Replicas[0].ID)

	svc.EXPECT().TriggerSync(gomock.Any()).Return([]domain.PassResult{{Peer: "b:1", Outcome: domain.OutcomeConverged, Pulled: 2}})
	resp = do(t, s, http.MethodPost, "/anti-entropy/run", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var passes struct {
		Passes []domain.PassResult `json:"passes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&passes))
	require.Len(t, passes.Passes, 1)
	assert.Equal(t, 2, passes.Passes[0].Pulled)

	resp = do(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleSuccessors(t *testing.T) {
	nodes := []shard.Node{{ID: "b", Addr: "b:1", Position: 20}, {ID: "c", Addr: "c:1", Position: 30}}

	t.Run("default count", func(t *testing.T) {
		s, svc := newTestServer(t, domain.KindVersioned)
		svc.EXPECT().Successors(gomock.Any(), ring.KeyID([]byte("k")), 1).Return(nodes[:1], nil)

		resp := do(t, s, http.MethodGet, "/successors/k", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			ID         string       `json:"id"`
			Successors []shard.Node `json:"successors"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, ring.KeyID([]byte("k")).String(), body.ID)
		assert.Equal(t, nodes[:1], body.Successors)
	})

	t.Run("explicit count", func(t *testing.T) {
		s, svc := newTestServer(t, domain.KindVersioned)
		svc.EXPECT().Successors(gomock.Any(), ring.ID(0x10), 2).Return(nodes, nil)

		resp := do(t, s, http.MethodGet, "/successors/0000000000000010?count=2", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("count out of range", func(t *testing.T) {
		s, _ := newTestServer(t, domain.KindVersioned)

		assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/successors/k?count=0", nil).StatusCode)
		assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/successors/k?count=65", nil).StatusCode)
	})

	t.Run("routing failure", func(t *testing.T) {
		s, svc := newTestServer(t, domain.KindVersioned)
		svc.EXPECT().Successors(gomock.Any(), gomock.Any(), 1).Return(nil, domain.ErrRoutingFailure)

		resp := do(t, s, http.MethodGet, "/successors/k", nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}
