// Package connect provides Connect RPC service implementations.
//
// Messages are google.protobuf.Struct values so the services can be called
// with the proto or JSON codecs without generated stubs.
package connect

const (
	// PlayerServiceName is the fully-qualified name of the control service.
	PlayerServiceName = "moodbox.v1.PlayerService"
	// ViewerServiceName is the fully-qualified name of the read-only service.
	ViewerServiceName = "moodbox.v1.ViewerService"
)

// Procedure paths.
const (
	PlayerServiceAddTrackURLProcedure  = "/moodbox.v1.PlayerService/AddTrackURL"
	PlayerServiceAddTrackFileProcedure = "/moodbox.v1.PlayerService/AddTrackFile"
	PlayerServiceRemoveTrackProcedure  = "/moodbox.v1.PlayerService/RemoveTrack"
	PlayerServiceSelectTrackProcedure  = "/moodbox.v1.PlayerService/SelectTrack"
	PlayerServiceTogglePlayProcedure   = "/moodbox.v1.PlayerService/TogglePlay"
	PlayerServicePlayProcedure         = "/moodbox.v1.PlayerService/Play"
	PlayerServicePauseProcedure        = "/moodbox.v1.PlayerService/Pause"
	PlayerServiceNextProcedure         = "/moodbox.v1.PlayerService/Next"
	PlayerServicePreviousProcedure     = "/moodbox.v1.PlayerService/Previous"
	PlayerServiceSeekProcedure         = "/moodbox.v1.PlayerService/Seek"
	PlayerServiceSetVolumeProcedure    = "/moodbox.v1.PlayerService/SetVolume"
	PlayerServiceAdjustVolumeProcedure = "/moodbox.v1.PlayerService/AdjustVolume"
	PlayerServiceToggleMuteProcedure   = "/moodbox.v1.PlayerService/ToggleMute"
	PlayerServiceSendCommandProcedure  = "/moodbox.v1.PlayerService/SendCommand"
	PlayerServiceSendGestureProcedure  = "/moodbox.v1.PlayerService/SendGesture"

	ViewerServiceGetStateProcedure = "/moodbox.v1.ViewerService/GetState"
	ViewerServiceWatchProcedure    = "/moodbox.v1.ViewerService/Watch"
)
