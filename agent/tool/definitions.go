package tool

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/arvidstrom/storeagent/agent/approval"
	contractx "github.com/arvidstrom/storeagent/agent/contract"
	"github.com/arvidstrom/storeagent/agent/service/accounting"
	"github.com/arvidstrom/storeagent/agent/service/listing"
	"github.com/arvidstrom/storeagent/agent/service/order"
	"github.com/arvidstrom/storeagent/agent/service/pricing"
	"github.com/arvidstrom/storeagent/agent/service/scout"
	"github.com/arvidstrom/storeagent/agent/storage"
)

// Services carries the business services the tool handlers close over.
type Services struct {
	Tradera    pricing.TraderaSearcher
	Blocket    pricing.BlocketSearcher
	Pricing    *pricing.Service
	Scout      *scout.Service
	Listing    *listing.Service
	Orders     *order.Service
	Accounting *accounting.Service
}

// Catalog registers the fixed tool set. Registration order is the order the
// backend sees, stable for the lifetime of the process.
func Catalog(s Services) *Registry {
	r := NewRegistry()

	r.MustRegister(
		Definition{
			Name: "search_tradera",
			Desc: "Sök efter liknande produkter på Tradera för prisjämförelse.",
			Params: map[string]*schema.ParameterInfo{
				"query":     {Type: schema.String, Desc: "Sökord, t.ex. 'teakbyrå 60-tal'", Required: true},
				"category":  {Type: schema.String, Desc: "Kategorifilter"},
				"max_price": {Type: schema.Number, Desc: "Högsta pris i SEK"},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				if s.Tradera == nil {
					return nil, fmt.Errorf("%w: tradera is not configured", contractx.ErrPrecondition)
				}
				items, err := s.Tradera.Search(ctx, argString(args, "query"), argString(args, "category"), argFloat(args, "max_price"))
				if err != nil {
					return nil, err
				}
				return map[string]any{"count": len(items), "items": items}, nil
			},
		},
		Definition{
			Name: "search_blocket",
			Desc: "Sök efter liknande annonser på Blocket för prisjämförelse.",
			Params: map[string]*schema.ParameterInfo{
				"query":     {Type: schema.String, Desc: "Sökord", Required: true},
				"region":    {Type: schema.String, Desc: "Regionfilter, t.ex. 'skane'"},
				"max_price": {Type: schema.Number, Desc: "Högsta pris i SEK"},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				if s.Blocket == nil {
					return nil, fmt.Errorf("%w: blocket is not configured", contractx.ErrPrecondition)
				}
				listings, err := s.Blocket.Search(ctx, argString(args, "query"), argString(args, "region"), argFloat(args, "max_price"))
				if err != nil {
					return nil, err
				}
				return map[string]any{"count": len(listings), "listings": listings}, nil
			},
		},
		Definition{
			Name: "price_check",
			Desc: "Gör en priskoll: söker Tradera och Blocket, räknar prisstatistik och föreslår ett prisintervall.",
			Params: map[string]*schema.ParameterInfo{
				"query":      {Type: schema.String, Desc: "Sökord som beskriver produkten", Required: true},
				"product_id": {Type: schema.String, Desc: "Produkt-id att koppla analysen till"},
				"category":   {Type: schema.String, Desc: "Kategorifilter för Tradera"},
			},
			RefParam: "product_id",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.Pricing.PriceCheck(ctx, argString(args, "query"), argString(args, "product_id"), argString(args, "category"))
			},
		},
		Definition{
			Name: "create_search",
			Desc: "Spara en bevakningssökning som scouten kör mot marknadsplatserna för att hitta inköpskandidater.",
			Params: map[string]*schema.ParameterInfo{
				"query":     {Type: schema.String, Desc: "Sökord, t.ex. 'stringhylla'", Required: true},
				"platform":  {Type: schema.String, Desc: "Marknadsplats att bevaka, standard both", Enum: []string{scout.PlatformTradera, scout.PlatformBlocket, scout.PlatformBoth}},
				"category":  {Type: schema.String, Desc: "Kategorifilter för Tradera"},
				"max_price": {Type: schema.Number, Desc: "Högsta pris i SEK"},
				"region":    {Type: schema.String, Desc: "Regionfilter för Blocket"},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.Scout.CreateSearch(ctx, scout.CreateSearchInput{
					Query:    argString(args, "query"),
					Platform: argString(args, "platform"),
					Category: argString(args, "category"),
					MaxPrice: argFloat(args, "max_price"),
					Region:   argString(args, "region"),
				})
			},
		},
		Definition{
			Name: "list_searches",
			Desc: "Lista sparade bevakningssökningar.",
			Params: map[string]*schema.ParameterInfo{
				"include_inactive": {Type: schema.Boolean, Desc: "Ta med avslutade bevakningar"},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				searches, err := s.Scout.ListSearches(ctx, argBool(args, "include_inactive"))
				if err != nil {
					return nil, err
				}
				return map[string]any{"count": len(searches), "searches": searches}, nil
			},
		},
		Definition{
			Name: "run_search",
			Desc: "Kör bevakningssökningar och visa bara nya fynd. Med search_id körs en enskild bevakning, annars alla aktiva med en sammanfattande rapport.",
			Params: map[string]*schema.ParameterInfo{
				"search_id": {Type: schema.String, Desc: "Bevakningens id; utelämna för att köra alla"},
			},
			RefParam: "search_id",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				if id := argString(args, "search_id"); id != "" {
					return s.Scout.RunSearch(ctx, id)
				}
				return s.Scout.RunAll(ctx)
			},
		},
		Definition{
			Name: "deactivate_search",
			Desc: "Avsluta en bevakningssökning. Historiken sparas men bevakningen körs inte längre.",
			Params: map[string]*schema.ParameterInfo{
				"search_id": {Type: schema.String, Desc: "Bevakningens id", Required: true},
			},
			RefParam: "search_id",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.Scout.DeactivateSearch(ctx, argString(args, "search_id"))
			},
		},
		Definition{
			Name: "create_product",
			Desc: "Skapa en ny produkt i databasen. Produkten börjar som utkast.",
			Params: map[string]*schema.ParameterInfo{
				"title":            {Type: schema.String, Desc: "Produktens titel", Required: true},
				"description":      {Type: schema.String, Desc: "Beskrivning på svenska"},
				"category":         {Type: schema.String, Desc: "Kategori, t.ex. 'möbler'"},
				"condition":        {Type: schema.String, Desc: "Skick"},
				"materials":        {Type: schema.String, Desc: "Material"},
				"era":              {Type: schema.String, Desc: "Tidsepok, t.ex. '1960-tal'"},
				"dimensions":       {Type: schema.String, Desc: "Mått"},
				"source":           {Type: schema.String, Desc: "Varifrån produkten kommer"},
				"acquisition_cost": {Type: schema.Number, Desc: "Inköpspris i SEK"},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.Listing.CreateProduct(ctx, listing.CreateProductInput{
					Title:           argString(args, "title"),
					Description:     argString(args, "description"),
					Category:        argString(args, "category"),
					Condition:       argString(args, "condition"),
					Materials:       argString(args, "materials"),
					Era:             argString(args, "era"),
					Dimensions:      argString(args, "dimensions"),
					Source:          argString(args, "source"),
					AcquisitionCost: argFloat(args, "acquisition_cost"),
				})
			},
		},
		Definition{
			Name: "search_products",
			Desc: "Sök i produktdatabasen.",
			Params: map[string]*schema.ParameterInfo{
				"query":            {Type: schema.String, Desc: "Fritextsökning i titel och beskrivning"},
				"status":           {Type: schema.String, Desc: "Statusfilter", Enum: []string{storage.ProductDraft, storage.ProductListed, storage.ProductSold, storage.ProductArchived}},
				"include_archived": {Type: schema.Boolean, Desc: "Ta med arkiverade produkter"},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				products, err := s.Listing.SearchProducts(ctx, argString(args, "query"), argString(args, "status"), argBool(args, "include_archived"))
				if err != nil {
					return nil, err
				}
				return map[string]any{"count": len(products), "products": products}, nil
			},
		},
		Definition{
			Name: "get_product",
			Desc: "Hämta en produkt med bilder.",
			Params: map[string]*schema.ParameterInfo{
				"product_id": {Type: schema.String, Desc: "Produktens id", Required: true},
			},
			RefParam: "product_id",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				p, images, err := s.Listing.GetProduct(ctx, argString(args, "product_id"))
				if err != nil {
					return nil, err
				}
				refs := make([]string, 0, len(images))
				for _, img := range images {
					refs = append(refs, img.Ref)
				}
				return map[string]any{"product": p, "images": images, contractx.DisplayRefsKey: refs}, nil
			},
		},
		Definition{
			Name: "archive_product",
			Desc: "Arkivera en produkt. Arkiverade produkter göms från sökningar och kan inte annonseras.",
			Params: map[string]*schema.ParameterInfo{
				"product_id": {Type: schema.String, Desc: "Produktens id", Required: true},
			},
			RefParam: "product_id",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.Listing.ArchiveProduct(ctx, argString(args, "product_id"))
			},
		},
		Definition{
			Name: "save_product_image",
			Desc: "Koppla en bildreferens till en produkt.",
			Params: map[string]*schema.ParameterInfo{
				"product_id": {Type: schema.String, Desc: "Produktens id", Required: true},
				"ref":        {Type: schema.String, Desc: "Bildreferens: filsökväg eller URL", Required: true},
				"primary":    {Type: schema.Boolean, Desc: "Använd som huvudbild"},
			},
			RefParam: "product_id",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.Listing.SaveImage(ctx, argString(args, "product_id"), argString(args, "ref"), argBool(args, "primary"))
			},
		},
		Definition{
			Name: "create_draft_listing",
			Desc: "Skapa ett annonsutkast för en produkt. Utkastet kräver ägarens godkännande innan publicering.",
			Params: map[string]*schema.ParameterInfo{
				"product_id":    {Type: schema.String, Desc: "Produktens id", Required: true},
				"listing_type":  {Type: schema.String, Desc: "Annonstyp", Required: true, Enum: []string{listing.TypeAuction, listing.TypeBuyNow, listing.TypeShopItem}},
				"title":         {Type: schema.String, Desc: "Annonstitel, annars produktens titel"},
				"description":   {Type: schema.String, Desc: "Annonstext, annars produktens beskrivning"},
				"category_id":   {Type: schema.Integer, Desc: "Tradera-kategori"},
				"start_price":   {Type: schema.Number, Desc: "Utropspris för auktion"},
				"buy_now_price": {Type: schema.Number, Desc: "Köp nu-pris"},
				"duration_days": {Type: schema.Integer, Desc: "Annonslängd i dagar, standard 7"},
			},
			RefParam: "product_id",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.Listing.CreateDraft(ctx, listing.DraftInput{
					ProductID:    argString(args, "product_id"),
					Title:        argString(args, "title"),
					Description:  argString(args, "description"),
					ListingType:  argString(args, "listing_type"),
					CategoryID:   argInt(args, "category_id"),
					StartPrice:   argFloat(args, "start_price"),
					BuyNowPrice:  argFloat(args, "buy_now_price"),
					DurationDays: argInt(args, "duration_days"),
				})
			},
		},
		Definition{
			Name: "list_draft_listings",
			Desc: "Lista annonsutkast, filtrerat på status.",
			Params: map[string]*schema.ParameterInfo{
				"status": {Type: schema.String, Desc: "Statusfilter, standard draft", Enum: []string{string(approval.StatusDraft), string(approval.StatusApproved), string(approval.StatusRejected), string(approval.StatusPublished)}},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				status := approval.Status(argString(args, "status"))
				drafts, err := s.Listing.ListDrafts(ctx, status)
				if err != nil {
					return nil, err
				}
				return map[string]any{"count": len(drafts), "drafts": drafts}, nil
			},
		},
		Definition{
			Name: "get_draft_listing",
			Desc: "Hämta ett annonsutkast för förhandsgranskning.",
			Params: map[string]*schema.ParameterInfo{
				"draft_id": {Type: schema.String, Desc: "Utkastets id", Required: true},
			},
			RefParam: "draft_id",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.Listing.GetDraft(ctx, argString(args, "draft_id"))
			},
		},
		Definition{
			Name: "update_draft_listing",
			Desc: "Redigera ett annonsutkast. Bara utkast i status draft kan redigeras.",
			Params: map[string]*schema.ParameterInfo{
				"draft_id":      {Type: schema.String, Desc: "Utkastets id", Required: true},
				"title":         {Type: schema.String, Desc: "Ny titel"},
				"description":   {Type: schema.String, Desc: "Ny annonstext"},
				"listing_type":  {Type: schema.String, Desc: "Ny annonstyp", Enum: []string{listing.TypeAuction, listing.TypeBuyNow, listing.TypeShopItem}},
				"start_price":   {Type: schema.Number, Desc: "Nytt utropspris"},
				"buy_now_price": {Type: schema.Number, Desc: "Nytt köp nu-pris"},
				"duration_days": {Type: schema.Integer, Desc: "Ny annonslängd"},
			},
			RefParam: "draft_id",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.Listing.UpdateDraft(ctx, argString(args, "draft_id"), draftUpdateFromArgs(args))
			},
		},
		Definition{
			Name: "approve_draft_listing",
			Desc: "Godkänn ett annonsutkast. Får bara användas efter ägarens uttryckliga godkännande.",
			Params: map[string]*schema.ParameterInfo{
				"draft_id": {Type: schema.String, Desc: "Utkastets id", Required: true},
			},
			RefParam: "draft_id",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.Listing.ApproveDraft(ctx, argString(args, "draft_id"))
			},
		},
		Definition{
			Name: "reject_draft_listing",
			Desc: "Avvisa ett annonsutkast. Ett avvisat utkast kan inte godkännas; använd revise_draft_listing för att göra om det.",
			Params: map[string]*schema.ParameterInfo{
				"draft_id": {Type: schema.String, Desc: "Utkastets id", Required: true},
				"reason":   {Type: schema.String, Desc: "Varför utkastet avvisas"},
			},
			RefParam: "draft_id",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.Listing.RejectDraft(ctx, argString(args, "draft_id"), argString(args, "reason"))
			},
		},
		Definition{
			Name: "revise_draft_listing",
			Desc: "Skapa ett nytt utkast utifrån ett avvisat, med ändringar. Det avvisade utkastet lämnas orört.",
			Params: map[string]*schema.ParameterInfo{
				"draft_id":      {Type: schema.String, Desc: "Det avvisade utkastets id", Required: true},
				"title":         {Type: schema.String, Desc: "Ny titel"},
				"description":   {Type: schema.String, Desc: "Ny annonstext"},
				"listing_type":  {Type: schema.String, Desc: "Ny annonstyp", Enum: []string{listing.TypeAuction, listing.TypeBuyNow, listing.TypeShopItem}},
				"start_price":   {Type: schema.Number, Desc: "Nytt utropspris"},
				"buy_now_price": {Type: schema.Number, Desc: "Nytt köp nu-pris"},
				"duration_days": {Type: schema.Integer, Desc: "Ny annonslängd"},
			},
			RefParam: "draft_id",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.Listing.ReviseDraft(ctx, argString(args, "draft_id"), draftUpdateFromArgs(args))
			},
		},
		Definition{
			Name: "publish_listing",
			Desc: "Publicera ett godkänt annonsutkast på Tradera.",
			Params: map[string]*schema.ParameterInfo{
				"draft_id": {Type: schema.String, Desc: "Det godkända utkastets id", Required: true},
			},
			RequiresApproval: true,
			RefParam:         "draft_id",
			Precondition: func(ctx context.Context, args map[string]any) error {
				return s.Listing.PublishableDraft(ctx, argString(args, "draft_id"))
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.Listing.Publish(ctx, argString(args, "draft_id"))
			},
		},
		Definition{
			Name: "list_orders",
			Desc: "Lista ordrar. Med sync=true hämtas nya ordrar från Tradera först; omatchade ordrar sparas för manuell granskning.",
			Params: map[string]*schema.ParameterInfo{
				"status": {Type: schema.String, Desc: "Statusfilter", Enum: []string{storage.OrderPending, storage.OrderShipped, storage.OrderDelivered, storage.OrderUnmatched}},
				"sync":   {Type: schema.Boolean, Desc: "Hämta nya ordrar från marknadsplatsen först"},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				out := map[string]any{}
				if argBool(args, "sync") {
					summary, err := s.Orders.Ingest(ctx)
					if err != nil {
						return nil, err
					}
					out["sync"] = summary
				}
				orders, err := s.Orders.List(ctx, argString(args, "status"))
				if err != nil {
					return nil, err
				}
				out["count"] = len(orders)
				out["orders"] = orders
				return out, nil
			},
		},
		Definition{
			Name: "get_order",
			Desc: "Hämta en order.",
			Params: map[string]*schema.ParameterInfo{
				"order_id": {Type: schema.String, Desc: "Orderns id", Required: true},
			},
			RefParam: "order_id",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.Orders.Get(ctx, argString(args, "order_id"))
			},
		},
		Definition{
			Name: "mark_order_shipped",
			Desc: "Markera en order som skickad. Första anropet med order_id skapar en leveransbekräftelse att godkänna; anropet med shipment_id efter ägarens bekräftelse utför markeringen.",
			Params: map[string]*schema.ParameterInfo{
				"order_id":        {Type: schema.String, Desc: "Orderns id, för att begära leveransbekräftelse"},
				"tracking_number": {Type: schema.String, Desc: "Spårningsnummer"},
				"shipment_id":     {Type: schema.String, Desc: "Leveransbekräftelsens id, efter ägarens bekräftelse"},
			},
			RequiresApproval: true,
			RefParam:         "order_id",
			Precondition: func(ctx context.Context, args map[string]any) error {
				if id := argString(args, "shipment_id"); id != "" {
					return s.Orders.ShipmentConfirmable(ctx, id)
				}
				if argString(args, "order_id") == "" {
					return fmt.Errorf("%w: order_id or shipment_id is required", contractx.ErrPrecondition)
				}
				return nil
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				if id := argString(args, "shipment_id"); id != "" {
					return s.Orders.ConfirmShipment(ctx, id)
				}
				a, err := s.Orders.RequestShipment(ctx, argString(args, "order_id"), argString(args, "tracking_number"))
				if err != nil {
					return nil, err
				}
				return map[string]any{"shipment_id": a.ID, "status": a.Status, "awaiting_approval": true}, nil
			},
		},
		Definition{
			Name: "leave_feedback",
			Desc: "Lämna omdöme till köparen. Första anropet med order_id och text skapar ett meddelandeutkast; anropet med feedback_id efter ägarens bekräftelse skickar det.",
			Params: map[string]*schema.ParameterInfo{
				"order_id":    {Type: schema.String, Desc: "Orderns id, för att skapa utkastet"},
				"text":        {Type: schema.String, Desc: "Omdömestext till köparen"},
				"feedback_id": {Type: schema.String, Desc: "Meddelandeutkastets id, efter ägarens bekräftelse"},
			},
			RequiresApproval: true,
			RefParam:         "order_id",
			Precondition: func(ctx context.Context, args map[string]any) error {
				if id := argString(args, "feedback_id"); id != "" {
					return s.Orders.FeedbackConfirmable(ctx, id)
				}
				if argString(args, "order_id") == "" {
					return fmt.Errorf("%w: order_id or feedback_id is required", contractx.ErrPrecondition)
				}
				return nil
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				if id := argString(args, "feedback_id"); id != "" {
					return s.Orders.ConfirmFeedback(ctx, id)
				}
				a, err := s.Orders.RequestFeedback(ctx, argString(args, "order_id"), argString(args, "text"))
				if err != nil {
					return nil, err
				}
				return map[string]any{"feedback_id": a.ID, "preview": a.Body, "awaiting_approval": true}, nil
			},
		},
		Definition{
			Name: "create_voucher",
			Desc: "Skapa en bokföringsverifikation. Debet och kredit måste balansera.",
			Params: map[string]*schema.ParameterInfo{
				"description": {Type: schema.String, Desc: "Verifikationstext", Required: true},
				"rows": {
					Type:     schema.Array,
					Desc:     "Verifikationsrader enligt BAS-kontoplanen",
					Required: true,
					ElemInfo: &schema.ParameterInfo{
						Type: schema.Object,
						SubParams: map[string]*schema.ParameterInfo{
							"account": {Type: schema.Integer, Desc: "BAS-kontonummer, t.ex. 1930", Required: true},
							"debit":   {Type: schema.Number, Desc: "Debetbelopp i SEK"},
							"credit":  {Type: schema.Number, Desc: "Kreditbelopp i SEK"},
						},
					},
				},
				"order_id":         {Type: schema.String, Desc: "Order som verifikationen avser"},
				"transaction_date": {Type: schema.String, Desc: "Transaktionsdatum, YYYY-MM-DD"},
			},
			RefParam: "order_id",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.Accounting.CreateVoucher(ctx, argString(args, "description"), voucherRowsFromArgs(args), argString(args, "order_id"), argString(args, "transaction_date"))
			},
		},
		Definition{
			Name: "list_vouchers",
			Desc: "Lista bokföringsverifikationer, valfritt inom ett datumintervall.",
			Params: map[string]*schema.ParameterInfo{
				"from_date": {Type: schema.String, Desc: "Från och med, YYYY-MM-DD"},
				"to_date":   {Type: schema.String, Desc: "Till och med, YYYY-MM-DD"},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				vouchers, err := s.Accounting.ListVouchers(ctx, argString(args, "from_date"), argString(args, "to_date"))
				if err != nil {
					return nil, err
				}
				return map[string]any{"count": len(vouchers), "vouchers": vouchers}, nil
			},
		},
	)

	return r
}

func draftUpdateFromArgs(args map[string]any) listing.DraftUpdate {
	return listing.DraftUpdate{
		Title:        argString(args, "title"),
		Description:  argString(args, "description"),
		ListingType:  argString(args, "listing_type"),
		StartPrice:   argFloat(args, "start_price"),
		BuyNowPrice:  argFloat(args, "buy_now_price"),
		DurationDays: argInt(args, "duration_days"),
	}
}

func voucherRowsFromArgs(args map[string]any) []storage.VoucherRow {
	raw, _ := args["rows"].([]any)
	rows := make([]storage.VoucherRow, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rows = append(rows, storage.VoucherRow{
			Account: int(argInt(m, "account")),
			Debit:   argFloat(m, "debit"),
			Credit:  argFloat(m, "credit"),
		})
	}
	return rows
}

// Argument accessors run after ValidateArgs, so the values already carry the
// coerced types for their declared schema.

func argString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func argFloat(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func argInt(args map[string]any, key string) int64 {
	switch v := args[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func argBool(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}
