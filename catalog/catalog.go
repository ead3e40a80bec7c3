package catalog

import "aunz-product-finder/models"

// Default is the fixed set of candidate product categories evaluated on
// every ranking run. Keywords are ordered most-canonical first; the
// Chinese label doubles as the supplier-side search term.
var Default = []models.Category{
	{ID: "bluetooth-earbuds", LabelEN: "wireless earbuds", LabelZH: "蓝牙耳机", Keywords: []string{"bluetooth earbuds", "wireless earbuds"}},
	{ID: "power-bank", LabelEN: "power bank", LabelZH: "充电宝", Keywords: []string{"power bank"}},
	{ID: "smart-watch", LabelEN: "smart watch", LabelZH: "智能手表", Keywords: []string{"smart watch"}},
	{ID: "sport-sunglasses", LabelEN: "sunglasses", LabelZH: "太阳镜", Keywords: []string{"sunglasses sport"}},
	{ID: "solar-light", LabelEN: "solar light", LabelZH: "太阳能灯", Keywords: []string{"solar garden light"}},
	{ID: "yoga-mat", LabelEN: "yoga mat", LabelZH: "瑜伽垫", Keywords: []string{"yoga mat"}},
	{ID: "phone-case", LabelEN: "phone case", LabelZH: "手机壳", Keywords: []string{"phone case"}},
	{ID: "led-strip", LabelEN: "LED light", LabelZH: "LED灯", Keywords: []string{"LED strip light"}},
	{ID: "backpack", LabelEN: "backpack", LabelZH: "背包", Keywords: []string{"backpack"}},
	{ID: "storage-organizer", LabelEN: "storage box", LabelZH: "收纳盒", Keywords: []string{"storage organizer"}},
}

// ByID returns the category with the given id, or false if unknown.
func ByID(id string) (models.Category, bool) {
	for _, c := range Default {
		if c.ID == id {
			return c, true
		}
	}
	return models.Category{}, false
}
