package nodes

// PanelController receives detail-panel updates for the node currently
// inspected in the UI. It is injected into the runtime so node units
// never hold UI callbacks inside their data maps.
type PanelController interface {
	// ShowDetail presents a payload section for a node, e.g. the
	// detected operations list after detection completes.
	ShowDetail(nodeID, section string, payload map[string]any)
	// ClearDetail drops any panel state for a removed node.
	ClearDetail(nodeID string)
}

// NopPanel is the default controller for headless use.
type NopPanel struct{}

func (NopPanel) ShowDetail(string, string, map[string]any) {}
func (NopPanel) ClearDetail(string)                        {}
