package firestore

import (
	"fmt"
	"strings"
	"time"

	"kinara/internal/domain"
)

// Documents written by the web admin store numbers as floats and timestamps as
// Timestamp values; the helpers below accept either shape.

func asMapAny(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

func mapGetStr(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func mapGetInt64(m map[string]any, key string) int64 {
	switch t := m[key].(type) {
	case int:
		return int64(t)
	case int64:
		return t
	case float64:
		return int64(t + 0.5)
	default:
		return 0
	}
}

func mapGetInt(m map[string]any, key string) int { return int(mapGetInt64(m, key)) }

func mapGetBool(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func mapGetTime(m map[string]any, key string) time.Time {
	switch t := m[key].(type) {
	case time.Time:
		return t.UTC()
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(t)); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

func mapGetTimePtr(m map[string]any, key string) *time.Time {
	t := mapGetTime(m, key)
	if t.IsZero() {
		return nil
	}
	return &t
}

func mapGetStrings(m map[string]any, key string) []string {
	raw, _ := m[key].([]any)
	out := make([]string, 0, len(raw))
	for _, x := range raw {
		if s, ok := x.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func mapGetStrMap(m map[string]any, key string) map[string]string {
	out := map[string]string{}
	for k, v := range asMapAny(m[key]) {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func decodeAddress(v any) domain.Address {
	m := asMapAny(v)
	return domain.Address{
		Street:     mapGetStr(m, "street"),
		City:       mapGetStr(m, "city"),
		State:      mapGetStr(m, "state"),
		PostalCode: mapGetStr(m, "postalCode"),
		Country:    mapGetStr(m, "country"),
	}
}

func encodeAddress(a domain.Address) map[string]any {
	return map[string]any{
		"street":     a.Street,
		"city":       a.City,
		"state":      a.State,
		"postalCode": a.PostalCode,
		"country":    a.Country,
	}
}

func productFromData(id string, data map[string]any) domain.Product {
	p := domain.Product{
		ID:             id,
		Name:           mapGetStr(data, "name"),
		Description:    mapGetStr(data, "description"),
		Price:          mapGetInt64(data, "price"),
		CategoryID:     mapGetStr(data, "categoryId"),
		Features:       mapGetStrings(data, "features"),
		Specifications: mapGetStrMap(data, "specifications"),
		Stock:          mapGetInt(data, "stock"),
		CreatedAt:      mapGetTime(data, "createdAt"),
		UpdatedAt:      mapGetTime(data, "updatedAt"),
	}
	raw, _ := data["images"].([]any)
	for _, x := range raw {
		switch img := x.(type) {
		case string:
			p.Images = append(p.Images, domain.ProductImage{Data: img})
		case map[string]any:
			p.Images = append(p.Images, domain.ProductImage{Data: mapGetStr(img, "data"), Type: mapGetStr(img, "type")})
		}
	}
	return p
}

func productData(p domain.Product) map[string]any {
	images := make([]map[string]any, 0, len(p.Images))
	for _, img := range p.Images {
		images = append(images, map[string]any{"data": img.Data, "type": img.Type})
	}
	features := p.Features
	if features == nil {
		features = []string{}
	}
	specs := p.Specifications
	if specs == nil {
		specs = map[string]string{}
	}
	return map[string]any{
		"name":           p.Name,
		"description":    p.Description,
		"price":          p.Price,
		"categoryId":     p.CategoryID,
		"images":         images,
		"features":       features,
		"specifications": specs,
		"stock":          p.Stock,
		"createdAt":      p.CreatedAt,
		"updatedAt":      p.UpdatedAt,
	}
}

func categoryFromData(id string, data map[string]any) domain.Category {
	return domain.Category{
		ID:          id,
		Name:        mapGetStr(data, "name"),
		Description: mapGetStr(data, "description"),
		CreatedAt:   mapGetTime(data, "createdAt"),
	}
}

func customerFromData(id string, data map[string]any) domain.Customer {
	c := domain.Customer{
		ID:            id,
		FirstName:     mapGetStr(data, "firstName"),
		LastName:      mapGetStr(data, "lastName"),
		Phone:         mapGetStr(data, "phone"),
		Email:         mapGetStr(data, "email"),
		CreatedAt:     mapGetTime(data, "createdAt"),
		UpdatedAt:     mapGetTime(data, "updatedAt"),
		TotalOrders:   mapGetInt(data, "totalOrders"),
		TotalSpent:    mapGetInt64(data, "totalSpent"),
		LastOrderDate: mapGetTimePtr(data, "lastOrderDate"),
	}
	raw, _ := data["addresses"].([]any)
	for _, x := range raw {
		m := asMapAny(x)
		if m == nil {
			continue
		}
		c.Addresses = append(c.Addresses, domain.CustomerAddress{Address: decodeAddress(m), IsDefault: mapGetBool(m, "isDefault")})
	}
	return c
}

func customerData(c domain.Customer) map[string]any {
	addrs := make([]map[string]any, 0, len(c.Addresses))
	for _, a := range c.Addresses {
		m := encodeAddress(a.Address)
		m["isDefault"] = a.IsDefault
		addrs = append(addrs, m)
	}
	data := map[string]any{
		"firstName":   c.FirstName,
		"lastName":    c.LastName,
		"phone":       c.Phone,
		"email":       c.Email,
		"addresses":   addrs,
		"createdAt":   c.CreatedAt,
		"updatedAt":   c.UpdatedAt,
		"totalOrders": c.TotalOrders,
		"totalSpent":  c.TotalSpent,
	}
	if c.LastOrderDate != nil {
		data["lastOrderDate"] = *c.LastOrderDate
	}
	return data
}

func decodeItems(v any) []domain.ResolvedLine {
	raw, _ := v.([]any)
	out := make([]domain.ResolvedLine, 0, len(raw))
	for _, x := range raw {
		m := asMapAny(x)
		if m == nil {
			continue
		}
		out = append(out, domain.ResolvedLine{
			ProductID:    mapGetStr(m, "productId"),
			Quantity:     mapGetInt(m, "quantity"),
			UnitPrice:    mapGetInt64(m, "price"),
			ProductName:  mapGetStr(m, "productName"),
			ProductImage: mapGetStr(m, "productImage"),
		})
	}
	return out
}

func orderFromData(id string, data map[string]any) domain.Order {
	return domain.Order{
		ID:               id,
		CustomerID:       mapGetStr(data, "customerId"),
		Items:            decodeItems(data["items"]),
		TotalAmount:      mapGetInt64(data, "totalAmount"),
		Status:           domain.OrderStatus(mapGetStr(data, "status")),
		OrderType:        mapGetStr(data, "orderType"),
		ShippingAddress:  decodeAddress(data["shippingAddress"]),
		PaymentStatus:    domain.PaymentStatus(mapGetStr(data, "paymentStatus")),
		PaymentMethod:    mapGetStr(data, "paymentMethod"),
		PaymentReference: mapGetStr(data, "paymentReference"),
		TrackingNumber:   mapGetStr(data, "trackingNumber"),
		Notes:            mapGetStr(data, "notes"),
		CreatedAt:        mapGetTime(data, "createdAt"),
		UpdatedAt:        mapGetTime(data, "updatedAt"),
	}
}

func orderData(o domain.Order) map[string]any {
	items := make([]map[string]any, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, map[string]any{
			"productId":    it.ProductID,
			"quantity":     it.Quantity,
			"price":        it.UnitPrice,
			"productName":  it.ProductName,
			"productImage": it.ProductImage,
		})
	}
	data := map[string]any{
		"customerId":      o.CustomerID,
		"items":           items,
		"totalAmount":     o.TotalAmount,
		"status":          string(o.Status),
		"orderType":       o.OrderType,
		"shippingAddress": encodeAddress(o.ShippingAddress),
		"paymentStatus":   string(o.PaymentStatus),
		"paymentMethod":   o.PaymentMethod,
		"createdAt":       o.CreatedAt,
		"updatedAt":       o.UpdatedAt,
	}
	if o.PaymentReference != "" {
		data["paymentReference"] = o.PaymentReference
	}
	if o.TrackingNumber != "" {
		data["trackingNumber"] = o.TrackingNumber
	}
	if o.Notes != "" {
		data["notes"] = o.Notes
	}
	return data
}
