package fetcher

import (
	"context"

	"github.com/sulaimonao/selfhostedsearch/pkg/failure"
	"github.com/sulaimonao/selfhostedsearch/pkg/retry"
)

type Fetcher interface {
	Fetch(
		ctx context.Context,
		crawlDepth int,
		fetchParam FetchParam,
		retryParam retry.RetryParam,
	) (FetchResult, failure.ClassifiedError)
}
