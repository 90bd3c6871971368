package database

type FeedRepository interface {
	GetFeed(feedName string) (*Feed, error)
	GetFeeds() ([]Feed, error)
	GetFeedCount() (int, error)

	UpsertFeedStatus(status FeedStatus) error
}

type RunRepository interface {
	GetRecentRuns(feedName string, limit int) ([]Run, error)

	RecordRun(run Run) error
}
