package sqlite

import (
	"time"

	"github.com/zjrosen/hotswap/internal/domain/artifact"
)

// artifactModel is the row shape of the artifacts table.
type artifactModel struct {
	Key       string
	Payload   []byte // compressed
	CreatedAt int64  // unix millis
}

func (m artifactModel) toInfo() artifact.Info {
	return artifact.Info{
		Key:       m.Key,
		Size:      int64(len(m.Payload)),
		CreatedAt: time.UnixMilli(m.CreatedAt),
	}
}
