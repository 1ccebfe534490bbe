package domain

// Background colors applied to windows and the loading splash.
const (
	BackgroundDark  = "#2C2C2C"
	BackgroundLight = "#FFFFFF"
)

// NativeTheme is the platform appearance source.
type NativeTheme interface {
	// SetSource selects system, light or dark.
	SetSource(mode string)
	Source() string
	ShouldUseDarkColors() bool
	// OnUpdated registers a listener for effective appearance changes.
	OnUpdated(fn func()) func()
}
