package squeeze

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Encoding is the tokenizer used for every token budget in the report.
const Encoding = "cl100k_base"

// encoding loads the BPE ranks from the embedded offline loader once, so
// squeezing never touches the network.
var encoding = sync.OnceValues(func() (*tiktoken.Tiktoken, error) {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	enc, err := tiktoken.GetEncoding(Encoding)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s tokenizer", Encoding)
	}
	return enc, nil
})
