package protocol

// GATT addressing for the Desky controller. The desk exposes one vendor
// service with a write characteristic for commands and a notify
// characteristic for reports.
const (
	ServiceUUID    = "0000ff12-0000-1000-8000-00805f9b34fb"
	WriteCharUUID  = "0000ff01-0000-1000-8000-00805f9b34fb"
	NotifyCharUUID = "0000ff02-0000-1000-8000-00805f9b34fb"

	// AdvertisedNamePrefix matches the local name Desky controllers
	// advertise when the service UUID is absent from the advertisement.
	AdvertisedNamePrefix = "Desky"
)
