package engine

import "errors"

var (
	// ErrIfaceExists indicates an interface with the same name is already up.
	ErrIfaceExists = errors.New("interface already exists")
	// ErrIfaceNotFound indicates the named interface is not (or no longer) up.
	ErrIfaceNotFound = errors.New("interface not found")

	// ErrNetworkNotFound indicates no live profile has the requested id.
	ErrNetworkNotFound = errors.New("network not found")
	// ErrNetworkLimit indicates the per-interface profile limit is reached.
	ErrNetworkLimit = errors.New("network profile limit reached")
	// ErrNetworkIDsExhausted indicates the id allocator ran out of ids.
	ErrNetworkIDsExhausted = errors.New("network id space exhausted")
	// ErrNotPersistent indicates a profile exists but is not a persistent
	// group credential.
	ErrNotPersistent = errors.New("network is not a persistent group")

	// ErrBusy indicates a group owner negotiation is already in progress.
	ErrBusy = errors.New("engine busy: negotiation in progress")
	// ErrNothingPending indicates there is no negotiation to cancel.
	ErrNothingPending = errors.New("no pending connection")
	// ErrPeerNotFound indicates the peer is not in the peer table.
	ErrPeerNotFound = errors.New("peer not found")
	// ErrGroupNotFound indicates the named group does not exist on the interface.
	ErrGroupNotFound = errors.New("group not found")

	// ErrUnsupportedChannel indicates a listen channel/operating class pair
	// outside the channel table.
	ErrUnsupportedChannel = errors.New("unsupported listen channel")

	// ErrServiceNotFound indicates a local Bonjour/UPnP service is unknown.
	ErrServiceNotFound = errors.New("service not found")
	// ErrInvalidServiceRecord indicates a service record cannot be encoded
	// in a service discovery response TLV.
	ErrInvalidServiceRecord = errors.New("service record does not fit a discovery TLV")
	// ErrServiceRequestNotFound indicates the service discovery identifier is
	// not outstanding.
	ErrServiceRequestNotFound = errors.New("service discovery request not found")
	// ErrServiceRequestLimit indicates no more service discovery requests
	// can be outstanding.
	ErrServiceRequestLimit = errors.New("service discovery request limit reached")
)
