/*
Copyright The Helm Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.BatchStarted("Demo", "download")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesActive.WithLabelValues("Demo", "download")))

	m.FileRetried("Demo", "download")
	m.FileSucceeded("Demo", "download", 1024, 20*time.Millisecond)
	m.FileFailed("Demo", "download")
	m.BatchFinished("Demo", "download")

	assert.Equal(t, 0.0, testutil.ToFloat64(m.BatchesActive.WithLabelValues("Demo", "download")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetriesTotal.WithLabelValues("Demo", "download")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesTotal.WithLabelValues("Demo", "download", "succeed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesTotal.WithLabelValues("Demo", "download", "failed")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.BytesTotal.WithLabelValues("Demo", "download")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TransferDuration))
}
