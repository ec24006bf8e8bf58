package domain

import "context"

// KVStore is the persistent key-value collaborator the cart and order
// history are written to. A missing key is reported with ok == false, never
// as an error.
type KVStore interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

type Catalog interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id ProductID) (*Product, error)
}

// StorageEvent tells other views that a persisted key changed.
type StorageEvent struct {
	Namespace string `json:"namespace,omitempty"`
	Key       string `json:"key"`
	Origin    string `json:"origin"`
}

type ChangeSignal interface {
	Publish(ctx context.Context, ev StorageEvent) error
	Subscribe(fn func(StorageEvent)) (cancel func())
}
