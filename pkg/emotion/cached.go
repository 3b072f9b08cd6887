package emotion

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log"

	lru "github.com/hashicorp/golang-lru/v2"
)

type result struct {
	Label string
	Score float64
}

// Cached memoizes a remote classifier. Keys cover the model, the text and
// the label set, so the same text classified against two vocabularies does
// not collide.
type Cached struct {
	classifier Classifier
	cache      *lru.Cache[string, result]
	model      string
}

func NewCached(classifier Classifier, size int, model string) *Cached {
	cache, err := lru.New[string, result](size)
	if err != nil {
		log.Printf("Error creating emotion cache: %v. Using size 1000.", err)
		cache, _ = lru.New[string, result](1000)
	}
	return &Cached{
		classifier: classifier,
		cache:      cache,
		model:      model,
	}
}

func (c *Cached) key(text string, labels []string) string {
	h := md5.New()
	h.Write([]byte(text))
	for _, label := range labels {
		h.Write([]byte{0})
		h.Write([]byte(label))
	}
	return fmt.Sprintf("%s:%s", c.model, hex.EncodeToString(h.Sum(nil)))
}

func (c *Cached) Classify(text string, labels []string) (string, float64, error) {
	key := c.key(text, labels)
	if r, ok := c.cache.Get(key); ok {
		return r.Label, r.Score, nil
	}

	label, score, err := c.classifier.Classify(text, labels)
	if err != nil {
		return "", 0, err
	}

	c.cache.Add(key, result{Label: label, Score: score})
	return label, score, nil
}

// Len is the number of cached classifications.
func (c *Cached) Len() int {
	return c.cache.Len()
}
