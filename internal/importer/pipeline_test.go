package importer

import (
	"context"
	"testing"
	"time"

	"github.com/Vatsal-Thapliyal/joblisting/internal/entities"
	"github.com/Vatsal-Thapliyal/joblisting/internal/queue"
	"github.com/Vatsal-Thapliyal/joblisting/internal/repositories"
	"github.com/asaskevich/EventBus"
	"github.com/stretchr/testify/assert"
)

const goodFeed = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Example Jobs</title>
    <item>
      <guid>job-1</guid>
      <title>Backend Engineer</title>
      <link>https://jobs.example.org/1</link>
      <category>Engineering</category>
    </item>
    <item>
      <guid>job-2</guid>
      <title>Data Analyst</title>
      <link>https://jobs.example.org/2</link>
    </item>
    <item>
      <description>no identifier and no title</description>
    </item>
  </channel>
</rss>`

const goodFeedRevised = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Example Jobs</title>
    <item>
      <guid>job-1</guid>
      <title>Senior Backend Engineer</title>
      <link>https://jobs.example.org/1</link>
    </item>
    <item>
      <guid>job-3</guid>
      <title>SRE</title>
      <link>https://jobs.example.org/3</link>
    </item>
  </channel>
</rss>`

type pipeline struct {
	jobs    *repositories.Jobs
	runs    *repositories.Runs
	queue   *queue.Memory
	service *Service
	client  *fakeFeedClient
}

func newPipeline(t *testing.T, sources []string, client *fakeFeedClient) *pipeline {
	t.Helper()

	dbContext, err := repositories.NewDbContext(":memory:")
	assert.NoError(t, err)
	assert.NoError(t, dbContext.Migrate())
	t.Cleanup(func() { _ = dbContext.Close() })

	jobs := repositories.NewJobsRepository(dbContext.DB)
	runs := repositories.NewRunsRepository(dbContext.DB)
	tracker := NewRunTracker(runs, EventBus.New())

	q := queue.NewMemory(queue.Options{
		Concurrency:    4,
		MaxAttempts:    3,
		Backoff:        time.Millisecond,
		ItemsPerSecond: 100000,
	})
	t.Cleanup(q.Stop)

	worker := NewWorker(jobs, tracker, 3, time.Millisecond)
	assert.NoError(t, q.Consume(worker.Handle))

	return &pipeline{
		jobs:    jobs,
		runs:    runs,
		queue:   q,
		service: NewService(client, tracker, q, sources, 2),
		client:  client,
	}
}

func (p *pipeline) waitUntilRunsFinish(t *testing.T, expected int) []entities.ImportRun {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		runs, err := p.runs.Get(context.Background(), 100, 0)
		assert.NoError(t, err)

		finished := 0
		for _, run := range runs {
			if run.FinishedAt != nil {
				finished++
			}
		}
		if len(runs) >= expected && finished == len(runs) {
			return runs
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("runs did not finish within deadline")
	return nil
}

func Test_Pipeline_ShouldImportFeedAndAccountForEveryItem(t *testing.T) {

	assert := assert.New(t)

	const sourceURL = "https://jobs.example.org/feed"
	client := &fakeFeedClient{responses: map[string][]byte{sourceURL: []byte(goodFeed)}}

	p := newPipeline(t, []string{sourceURL}, client)
	p.service.RunAll(context.Background())

	runs := p.waitUntilRunsFinish(t, 1)
	assert.Len(runs, 1)

	run, err := p.runs.GetByID(context.Background(), runs[0].ID)
	assert.NoError(err)
	assert.Equal(entities.RunCompleted, run.Status)
	assert.Equal(3, run.TotalFetched)
	assert.Equal(2, run.NewJobs)
	assert.Equal(0, run.UpdatedJobs)
	assert.Equal(1, run.FailedJobsCount)
	assert.Equal(run.TotalFetched, run.NewJobs+run.UpdatedJobs+run.FailedJobsCount)
	assert.Len(run.FailedJobs, 1)

	count, err := p.jobs.Count(context.Background())
	assert.NoError(err)
	assert.Equal(int64(2), count)

	stored, err := p.jobs.GetByKey(context.Background(), sourceURL, "job-1")
	assert.NoError(err)
	assert.Equal("Backend Engineer", stored.Title)
	assert.Equal("Engineering", stored.Category)
}

func Test_Pipeline_ReimportingSameFeed_ShouldUpdateInsteadOfDuplicate(t *testing.T) {

	assert := assert.New(t)

	const sourceURL = "https://jobs.example.org/feed"
	client := &fakeFeedClient{responses: map[string][]byte{sourceURL: []byte(goodFeed)}}

	p := newPipeline(t, []string{sourceURL}, client)
	p.service.RunAll(context.Background())
	p.waitUntilRunsFinish(t, 1)

	client.responses[sourceURL] = []byte(goodFeedRevised)
	p.service.RunAll(context.Background())
	runs := p.waitUntilRunsFinish(t, 2)
	assert.Len(runs, 2)

	// Get returns newest first; the revised feed has one update and one new job.
	secondRun, err := p.runs.GetByID(context.Background(), runs[0].ID)
	assert.NoError(err)
	assert.Equal(entities.RunCompleted, secondRun.Status)
	assert.Equal(2, secondRun.TotalFetched)
	assert.Equal(1, secondRun.NewJobs)
	assert.Equal(1, secondRun.UpdatedJobs)
	assert.Equal(0, secondRun.FailedJobsCount)

	count, err := p.jobs.Count(context.Background())
	assert.NoError(err)
	assert.Equal(int64(3), count)

	stored, err := p.jobs.GetByKey(context.Background(), sourceURL, "job-1")
	assert.NoError(err)
	assert.Equal("Senior Backend Engineer", stored.Title)
}

func Test_Pipeline_OneSourceFailing_ShouldNotAffectTheOther(t *testing.T) {

	assert := assert.New(t)

	const goodURL = "https://jobs.example.org/good"
	const badURL = "https://jobs.example.org/bad"

	client := &fakeFeedClient{
		responses: map[string][]byte{
			goodURL: []byte(goodFeed),
			badURL:  []byte("this is not a feed"),
		},
	}

	p := newPipeline(t, []string{goodURL, badURL}, client)
	p.service.RunAll(context.Background())

	runs := p.waitUntilRunsFinish(t, 2)
	assert.Len(runs, 2)

	byStatus := map[entities.RunStatus]entities.ImportRun{}
	for _, run := range runs {
		byStatus[run.Status] = run
	}

	completed, ok := byStatus[entities.RunCompleted]
	assert.True(ok)
	assert.Equal(goodURL, completed.SourceURL)
	assert.Equal(3, completed.TotalFetched)

	failed, ok := byStatus[entities.RunFailed]
	assert.True(ok)
	assert.Equal(badURL, failed.SourceURL)
	assert.NotEmpty(failed.Error)

	count, err := p.jobs.Count(context.Background())
	assert.NoError(err)
	assert.Equal(int64(2), count)
}
