package connection

import "context"

// Reader reads connections
type Reader interface {
	FindByID(ctx context.Context, id int64) (*Connection, error)
	FindAll(ctx context.Context) ([]Connection, error)
	// FindActive returns active connections ordered by id
	FindActive(ctx context.Context) ([]Connection, error)
}

// Writer persists connections
type Writer interface {
	Save(ctx context.Context, conn *Connection) error
	Delete(ctx context.Context, id int64) error
}

// Repository combines Reader and Writer
type Repository interface {
	Reader
	Writer
}
