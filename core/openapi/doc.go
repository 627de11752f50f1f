package openapi

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/swaggo/swag"
)

// DefaultInstance is the swag instance name the HTTP channel reads.
const DefaultInstance = swag.Name

// document is a swag.Swagger whose content can be replaced after
// registration; swag refuses to register a name twice.
type document struct {
	content atomic.Value
}

func (d *document) ReadDoc() string {
	s, _ := d.content.Load().(string)
	return s
}

var (
	mu        sync.Mutex
	documents = map[string]*document{}
)

// Publish registers spec with swag under instance, replacing any document
// published earlier under the same name.
func Publish(instance string, spec *Spec) error {
	data, err := spec.ToJSON()
	if err != nil {
		return fmt.Errorf("encode openapi document: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()

	doc, ok := documents[instance]
	if !ok {
		doc = &document{}
		if swag.GetSwagger(instance) != nil {
			return fmt.Errorf("swag instance %q registered outside openapi", instance)
		}
		swag.Register(instance, doc)
		documents[instance] = doc
	}
	doc.content.Store(string(data))
	return nil
}

// Read returns the document published under instance.
func Read(instance string) (string, error) {
	return swag.ReadDoc(instance)
}
