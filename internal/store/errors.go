package store

import "github.com/tripwatch/tripwatch/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrorCode("store_invalid_config")
	ErrInvalidDBPath = errors.ErrorCode("store_invalid_db_path")

	// Record Errors
	ErrInvalidTrip = errors.ErrorCode("store_invalid_trip")
	ErrSaveTrip    = errors.ErrorCode("store_save_trip_failed")
	ErrQueryTrips  = errors.ErrorCode("store_query_trips_failed")

	// Storage Errors
	ErrStorageInit  = errors.ErrorCode("store_storage_init_failed")
	ErrStorageClose = errors.ErrorCode("store_storage_close_failed")
	ErrSchemaInit   = errors.ErrorCode("store_schema_init_failed")

	// Operation Errors
	ErrOperationTimeout = errors.ErrorCode("store_operation_timeout")
	ErrServiceShutdown  = errors.ErrorCode("store_service_shutdown_failed")
)
