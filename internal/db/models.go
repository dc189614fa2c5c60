package db

import (
	"time"
)

// Cluster maps watch.clusters: one story covered by one or more sources.
type Cluster struct {
	ClusterID           string     `gorm:"column:cluster_id;type:text;primaryKey"`
	RepresentativeTitle string     `gorm:"column:representative_title;type:text;not null"`
	EntityName          string     `gorm:"column:entity_name;type:text;not null"`
	Category            string     `gorm:"column:category;type:text;not null;default:Other"`
	SourceCount         int        `gorm:"column:source_count;type:integer;not null;default:1"`
	FirstPublished      *time.Time `gorm:"column:first_published;type:timestamptz"`
	CreatedAt           time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Cluster) TableName() string { return "watch.clusters" }

// Article maps watch.articles: one piece of coverage from one source.
type Article struct {
	ArticleID      string     `gorm:"column:article_id;type:text;primaryKey"`
	ClusterID      *string    `gorm:"column:cluster_id;type:text"`
	Title          string     `gorm:"column:title;type:text;not null"`
	Content        string     `gorm:"column:content;type:text;not null;default:''"`
	SourceName     string     `gorm:"column:source_name;type:text;not null;default:Unknown"`
	URL            string     `gorm:"column:url;type:text;not null;unique"`
	PublishedAt    *time.Time `gorm:"column:published_at;type:timestamptz"`
	CollectedAt    time.Time  `gorm:"column:collected_at;type:timestamptz;not null;default:now()"`
	EntityName     string     `gorm:"column:entity_name;type:text;not null"`
	Language       string     `gorm:"column:language;type:text;not null;default:und"`
	SentimentScore float64    `gorm:"column:sentiment_score;type:double precision;not null;default:0"`
	Category       string     `gorm:"column:category;type:text;not null;default:Other"`
	DataSource     string     `gorm:"column:data_source;type:text;not null"`
	ImageURL       *string    `gorm:"column:image_url;type:text"`
}

func (Article) TableName() string { return "watch.articles" }

func autoMigrateModels() []any {
	return []any{
		&Cluster{},
		&Article{},
	}
}
