package tool

import (
	"github.com/cloudwego/eino/schema"

	statex "github.com/tanpawarit/chinook-concierge/agent/state"
)

const (
	RouterTool = "Router"

	GetCustomerInfo              = "get_customer_info"
	UpdateCustomerInfo           = "update_customer_info"
	GetInvoicesByCustomer        = "get_invoices_by_customer"
	GetPurchasedAlbumsByCustomer = "get_purchased_albums_by_customer"
	GetTopPurchasedArtists       = "get_top_purchased_artists_by_customer"

	GetAlbumsByArtist = "get_albums_by_artist"
	GetTracksByArtist = "get_tracks_by_artist"
	CheckForSongs     = "check_for_songs"
)

// RouterInfo is the routing tool bound to the router model.
func RouterInfo() *schema.ToolInfo {
	labels := make([]string, 0, len(statex.Targets))
	for _, t := range statex.Targets {
		labels = append(labels, t.String())
	}
	return &schema.ToolInfo{
		Name: RouterTool,
		Desc: "Call this if you are able to route the user to the appropriate representative(s).",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"choices": {
				Type:     schema.Array,
				Desc:     "A list of choices, each should be one of: 'music', 'customer', 'other'",
				ElemInfo: &schema.ParameterInfo{Type: schema.String, Enum: labels},
				Required: true,
			},
		}),
	}
}

var customerIdentity = map[string]*schema.ParameterInfo{
	"customer_id": {Type: schema.Integer, Desc: "The unique ID of the customer.", Required: true},
	"first_name":  {Type: schema.String, Desc: "The first name of the customer.", Required: true},
	"last_name":   {Type: schema.String, Desc: "The last name of the customer.", Required: true},
}

func customerIDOnly() map[string]*schema.ParameterInfo {
	return map[string]*schema.ParameterInfo{
		"customer_id": {Type: schema.Integer, Desc: "The unique ID of the customer.", Required: true},
	}
}

func withUpdates() map[string]*schema.ParameterInfo {
	params := make(map[string]*schema.ParameterInfo, len(customerIdentity)+1)
	for k, v := range customerIdentity {
		params[k] = v
	}
	params["updates"] = &schema.ParameterInfo{
		Type:     schema.Object,
		Desc:     "Column-value pairs to update. Valid columns are: FirstName, LastName, Company, Address, City, State, Country, PostalCode, Phone, Fax, Email.",
		Required: true,
	}
	return params
}

// InfosFor returns the tool schemas bound to a specialist, in a stable order.
func InfosFor(target statex.Target) []*schema.ToolInfo {
	switch target {
	case statex.TargetCustomer:
		return []*schema.ToolInfo{
			{
				Name:        GetCustomerInfo,
				Desc:        "Retrieves customer information based on Customer ID, First Name, and Last Name. If any of them is not supplied, ask the user to provide them.",
				ParamsOneOf: schema.NewParamsOneOfByParams(customerIdentity),
			},
			{
				Name:        UpdateCustomerInfo,
				Desc:        "Updates customer information based on Customer ID, First Name, and Last Name. ALWAYS look the customer up first, and make sure you have the updates before calling. Changes require human approval.",
				ParamsOneOf: schema.NewParamsOneOfByParams(withUpdates()),
			},
			{
				Name:        GetInvoicesByCustomer,
				Desc:        "Get invoices for a given customer. ALWAYS look the customer up first.",
				ParamsOneOf: schema.NewParamsOneOfByParams(customerIDOnly()),
			},
			{
				Name:        GetPurchasedAlbumsByCustomer,
				Desc:        "Get albums purchased by a customer. ALWAYS look the customer up first.",
				ParamsOneOf: schema.NewParamsOneOfByParams(customerIDOnly()),
			},
			{
				Name:        GetTopPurchasedArtists,
				Desc:        "Get the top 10 most purchased artists by a customer. ALWAYS look the customer up first.",
				ParamsOneOf: schema.NewParamsOneOfByParams(customerIDOnly()),
			},
		}
	case statex.TargetMusic:
		return []*schema.ToolInfo{
			{
				Name: GetAlbumsByArtist,
				Desc: "Get albums by an artist (or similar artists).",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"artist": {Type: schema.String, Desc: "Artist name", Required: true},
				}),
			},
			{
				Name: GetTracksByArtist,
				Desc: "Get songs by an artist (or similar artists).",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"artist": {Type: schema.String, Desc: "Artist name", Required: true},
				}),
			},
			{
				Name: CheckForSongs,
				Desc: "Check if a song exists by its name.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"song_title": {Type: schema.String, Desc: "Song title", Required: true},
				}),
			},
		}
	default:
		return nil
	}
}

// Names lists the tool names a specialist may call.
func Names(target statex.Target) []string {
	infos := InfosFor(target)
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	return names
}
