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

package mysql

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOptionsNormalizesDSN(t *testing.T) {
	m, err := NewWithOptions(
		WithDSN(" circles:secret@tcp(db.local:3307)/zk "),
	)
	require.NoError(t, err)
	assert.Equal(t, "zk", m.database)
	assert.NotNil(t, m.logger)
	assert.True(t, m.SupportsRowLocks())
	cfg, err := mysql.ParseDSN(m.dsn)
	require.NoError(t, err)
	assert.Equal(t, "circles", cfg.User)
	assert.Equal(t, "secret", cfg.Passwd)
	assert.Equal(t, "db.local:3307", cfg.Addr)
	assert.True(t, cfg.ParseTime)
}

func TestNewWithOptionsRejectsBadDSN(t *testing.T) {
	testDefs := []struct {
		name string
		dsn  string
	}{
		{name: "empty", dsn: ""},
		{name: "no database", dsn: "user:pass@tcp(db:3306)/"},
		{name: "malformed", dsn: "user:pass@tcp(db:3306"},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			_, err := NewWithOptions(WithDSN(testDef.dsn))
			require.Error(t, err)
		})
	}
}

func TestNewFromCmdlineOptionsDefersError(t *testing.T) {
	// No DSN configured: the error surfaces on Start
	p := NewFromCmdlineOptions()
	_, ok := p.(*MetadataStoreMysql)
	require.False(t, ok)
	require.Error(t, p.Start())
}
