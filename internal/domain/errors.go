package domain

import "errors"

var (
	// ErrInvalidCoordinates marks a signal whose location is missing or
	// outside the valid lat/lon ranges. Rejected at ingress, never scored.
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrEmptyText marks a signal with no textual content to classify.
	ErrEmptyText = errors.New("empty signal text")

	// ErrUnknownSource marks a signal whose source kind is neither report
	// nor social.
	ErrUnknownSource = errors.New("unknown signal source")

	// ErrZoneNotFound is returned when a zone id does not resolve to an
	// active zone, including the case where it expired between snapshot and
	// read.
	ErrZoneNotFound = errors.New("zone not found")

	// ErrSignalNotFound is returned when a signal id is not in the store.
	ErrSignalNotFound = errors.New("signal not found")

	// ErrPartitionBusy is a transient failure: the clustering critical
	// section for a partition was still contended after bounded retries.
	ErrPartitionBusy = errors.New("clustering partition busy")

	// ErrProviderUnavailable wraps timeouts and failures from external
	// capability providers (weather, geocoder, classifier). Callers degrade
	// to cached or default values and continue.
	ErrProviderUnavailable = errors.New("provider unavailable")
)
