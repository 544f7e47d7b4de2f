// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package explorer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestServer(
	t *testing.T,
	handler http.HandlerFunc,
) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestTransactionStatus(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/transaction/at1done":
			_, _ = w.Write([]byte(`{"status":"accepted","execution":{"transitions":[]}}`))
		case "/transaction/at1rejected":
			_, _ = w.Write([]byte(`{"status":"rejected"}`))
		case "/transaction/at1waiting":
			_, _ = w.Write([]byte(`{"status":"accepted","execution":null}`))
		case "/transaction/at1garbage":
			_, _ = w.Write([]byte(`not json`))
		default:
			http.NotFound(w, r)
		}
	})
	client := NewClient(server.URL + "/")
	tests := []struct {
		txID     string
		expected TxStatus
	}{
		{"at1done", TxCompleted},
		{"at1rejected", TxFailed},
		{"at1waiting", TxPending},
		{"at1garbage", TxPending},
		{"at1missing", TxPending},
		{"", TxPending},
	}
	for _, test := range tests {
		assert.Equal(
			t,
			test.expected,
			client.TransactionStatus(context.Background(), test.txID),
			test.txID,
		)
	}
}

func TestTransactionStatusUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	client := NewClient(server.URL)
	assert.Equal(
		t,
		TxPending,
		client.TransactionStatus(context.Background(), "at1tx"),
	)
}

func TestDefaultURL(t *testing.T) {
	assert.Equal(t, DefaultURL, NewClient("").baseURL)
}
