package peer

import (
	"github.com/opd-ai/nowlink/interfaces"
	"github.com/opd-ai/nowlink/radio"
)

// failingDriver implements interfaces.RadioDriver and fails every call with err.
type failingDriver struct {
	err error
}

func (f *failingDriver) Init() error { return f.err }
func (f *failingDriver) Deinit() error { return f.err }
func (f *failingDriver) RegisterReceiveCallback(interfaces.ReceiveFunc) error { return f.err }
func (f *failingDriver) RegisterSendCallback(interfaces.SendCompleteFunc) error { return f.err }
func (f *failingDriver) SetPrimaryKey(radio.Key) error { return f.err }
func (f *failingDriver) AddPeer(radio.PeerInfo) error { return f.err }
func (f *failingDriver) RemovePeer(radio.Address) error { return f.err }
func (f *failingDriver) ModifyPeer(radio.PeerInfo) error { return f.err }
func (f *failingDriver) Send(radio.Address, []byte) error { return f.err }

func (f *failingDriver) GetPeer(radio.Address) (radio.PeerInfo, error) {
	return radio.PeerInfo{}, f.err
}

func (f *failingDriver) FetchPeer(bool) (radio.PeerInfo, error) {
	return radio.PeerInfo{}, f.err
}

func (f *failingDriver) PeerCount() (radio.PeerCount, error) {
	return radio.PeerCount{}, f.err
}

func (f *failingDriver) ActiveInterfaces() (radio.InterfaceSet, error) {
	return radio.NoInterfaces, f.err
}

func (f *failingDriver) Version() (uint32, error) {
	return 0, f.err
}

var _ interfaces.RadioDriver = (*failingDriver)(nil)
