package reminder

// Bucket holds the pending items of one recipient in arrival order.
type Bucket struct {
	Recipient   string
	Destination string
	Items       []Item
}

// Buckets groups accepted classifications by recipient, keeping recipients in
// the order they were first seen.
type Buckets struct {
	order       []*Bucket
	byRecipient map[string]*Bucket
}

// NewBuckets returns an empty grouping.
func NewBuckets() *Buckets {
	return &Buckets{byRecipient: make(map[string]*Bucket)}
}

// Aggregate groups accepted classifications. Rejected ones are ignored.
func Aggregate(accepted []Classification) *Buckets {
	b := NewBuckets()
	for _, c := range accepted {
		b.Add(c)
	}
	return b
}

// Add appends an accepted classification to its recipient's bucket. The
// bucket's destination is the first non-empty one seen.
func (b *Buckets) Add(c Classification) {
	if !c.Accepted {
		return
	}
	bucket, ok := b.byRecipient[c.Recipient]
	if !ok {
		bucket = &Bucket{Recipient: c.Recipient}
		b.byRecipient[c.Recipient] = bucket
		b.order = append(b.order, bucket)
	}
	if bucket.Destination == "" {
		bucket.Destination = c.Destination
	}
	bucket.Items = append(bucket.Items, c.Item)
}

// List returns the buckets in first-arrival order.
func (b *Buckets) List() []*Bucket {
	return b.order
}

// Len returns the number of recipients.
func (b *Buckets) Len() int {
	return len(b.order)
}

// ItemCount returns the number of items across all buckets.
func (b *Buckets) ItemCount() int {
	n := 0
	for _, bucket := range b.order {
		n += len(bucket.Items)
	}
	return n
}

// Get returns the bucket of a recipient.
func (b *Buckets) Get(recipient string) (*Bucket, bool) {
	bucket, ok := b.byRecipient[recipient]
	return bucket, ok
}
