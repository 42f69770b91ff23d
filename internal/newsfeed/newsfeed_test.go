// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package newsfeed

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocgully/construct/internal/config"
)

const sampleRSS = `<?xml version="1.0"?>
<rss><channel>
<item><title>Node table doubled</title><link>https://example.test/1</link><description>Four more lines.</description></item>
<item><title>Chat hub rewritten</title><link>https://example.test/2</link><description>Now with paging.</description></item>
</channel></rss>`

func TestPoller_StartPopulatesSnapshotSynchronously(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	p := NewPoller([]config.NewsFeedConfig{{Title: "Sysop Bulletin", URL: srv.URL}}, time.Hour)
	p.Start()
	defer p.Close()

	feeds := p.Snapshot()
	require.Len(t, feeds, 1)
	assert.Equal(t, "Sysop Bulletin", feeds[0].Title)
	require.Len(t, feeds[0].Items, 2)
	assert.Equal(t, "Node table doubled", feeds[0].Items[0].Title)
	assert.Equal(t, "https://example.test/2", feeds[0].Items[1].Link)
}

func TestPoller_SnapshotOmitsSourcesThatFailedToFetch(t *testing.T) {
	p := NewPoller([]config.NewsFeedConfig{{Title: "Dead Feed", URL: "http://127.0.0.1:0/nope"}}, time.Hour)
	p.Start()
	defer p.Close()

	assert.Empty(t, p.Snapshot())
}
