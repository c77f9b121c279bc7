package databases

// go generate: mockery --name StaffDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/metrofound/lostfound-api/models"
)

const staffCollectionName = "staff"

// StaffDatabase defines the interface for staff account operations
type StaffDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.StaffUser, error)
	InsertOne(ctx context.Context, staff models.StaffUser, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

type staffDatabase struct {
	db DatabaseHelper
}

// NewStaffDatabase creates a new staff database wrapper
func NewStaffDatabase(db DatabaseHelper) StaffDatabase {
	return &staffDatabase{db: db}
}

func (s *staffDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.StaffUser, error) {
	staff := &models.StaffUser{}
	err := s.db.Collection(staffCollectionName).FindOne(ctx, filter, opts...).Decode(&staff)
	if err != nil {
		return nil, err
	}
	return staff, nil
}

func (s *staffDatabase) InsertOne(ctx context.Context, staff models.StaffUser, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return s.db.Collection(staffCollectionName).InsertOne(ctx, staff, opts...)
}

func (s *staffDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return s.db.Collection(staffCollectionName).UpdateOne(ctx, filter, update, opts...)
}

const staffResetCollectionName = "staff_resets"

// StaffResetDatabase defines the interface for staff password reset tokens
type StaffResetDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.StaffPasswordReset, error)
	InsertOne(ctx context.Context, reset models.StaffPasswordReset, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error)
}

type staffResetDatabase struct {
	db DatabaseHelper
}

// NewStaffResetDatabase creates a new staff reset database wrapper
func NewStaffResetDatabase(db DatabaseHelper) StaffResetDatabase {
	return &staffResetDatabase{db: db}
}

func (s *staffResetDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.StaffPasswordReset, error) {
	reset := &models.StaffPasswordReset{}
	err := s.db.Collection(staffResetCollectionName).FindOne(ctx, filter, opts...).Decode(&reset)
	if err != nil {
		return nil, err
	}
	return reset, nil
}

func (s *staffResetDatabase) InsertOne(ctx context.Context, reset models.StaffPasswordReset, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return s.db.Collection(staffResetCollectionName).InsertOne(ctx, reset, opts...)
}

func (s *staffResetDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return s.db.Collection(staffResetCollectionName).UpdateOne(ctx, filter, update, opts...)
}

func (s *staffResetDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error) {
	return s.db.Collection(staffResetCollectionName).DeleteOne(ctx, filter, opts...)
}
