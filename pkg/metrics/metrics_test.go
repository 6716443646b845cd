package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"profilegrab/internal/downloader"
	"profilegrab/pkg/events"
	"profilegrab/pkg/models"
)

func TestRunLifecycle(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RunStarted(models.Threads)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsActive))

	m.EventEmitted(models.Threads, events.Progress(4))
	m.EventEmitted(models.Threads, events.Progress(9))
	m.EventEmitted(models.Threads, events.Done("ok"))
	m.RunFinished(models.Threads, "done", 3*time.Second)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsStarted.WithLabelValues("threads")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsFinished.WithLabelValues("threads", "done")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsEmitted.WithLabelValues("threads", "progress")))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.MediaFound.WithLabelValues("threads")))
}

func TestRecordDownload(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordDownload(downloader.OutcomeDownloaded, time.Second, 2048)
	m.RecordDownload(downloader.OutcomeSkipped, 0, 0)
	m.RecordDownload(downloader.OutcomeSkipped, 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Downloads.WithLabelValues("downloaded")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Downloads.WithLabelValues("skipped")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.DownloadBytes))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DownloadDuration))
}
