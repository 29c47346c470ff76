package domain

import "strings"

type Entity struct {
	ID   string
	Name string
	Hint string
}

// Catalog is the fixed set of controllable devices and scenes offered to the model.
var Catalog = []Entity{
	{ID: "light.salon_isigi", Name: "Salon Işığı", Hint: "Salon ışığı (aç/kapat, parlaklık %, RGB renk, transition saniye)"},
	{ID: "light.yatak_odasi_isigi", Name: "Yatak Odası Işığı", Hint: "Yatak odası ışığı"},
	{ID: "light.mutfak_isigi", Name: "Mutfak Işığı", Hint: "Mutfak ışığı"},
	{ID: "climate.klima", Name: "Klima", Hint: "Klima (sıcaklık, mod)"},
	{ID: "fan.fan_salon", Name: "Salon Fanı", Hint: "Salon fanı"},
	{ID: "cover.perde_salon", Name: "Salon Perdesi", Hint: "Salon perdesi"},
	{ID: "media_player.tv_salon", Name: "Salon TV", Hint: "Salon TV"},
	{ID: "media_player.muzik_sistemi", Name: "Müzik Sistemi", Hint: "Müzik sistemi"},
	{ID: "switch.kahve_makinesi", Name: "Kahve Makinesi", Hint: "Kahve makinesi"},
	{ID: "switch.cay_makinesi", Name: "Çay Makinesi", Hint: "Çay makinesi"},
	{ID: "switch.robot_supurge", Name: "Robot Süpürge", Hint: "Robot süpürge"},
	{ID: "scene.sabah_rutini", Name: "Sabah Rutini", Hint: "Sabah rutini"},
	{ID: "scene.aksam_rahatlama", Name: "Akşam Rahatlama", Hint: "Akşam rahatlama"},
	{ID: "scene.film_gecesi", Name: "Film Gecesi", Hint: "Film gecesi"},
	{ID: "scene.misafir_modu", Name: "Misafir Modu", Hint: "Misafir modu"},
	{ID: "scene.calisma_modu", Name: "Çalışma Modu", Hint: "Çalışma modu"},
	{ID: "scene.enerji_tasarrufu", Name: "Enerji Tasarrufu", Hint: "Enerji tasarrufu"},
}

var entityIndex = func() map[string]*Entity {
	idx := make(map[string]*Entity, len(Catalog))
	for i := range Catalog {
		idx[Catalog[i].ID] = &Catalog[i]
	}
	return idx
}()

// LookupEntity returns the catalog entry for id.
func LookupEntity(id string) (Entity, bool) {
	e, ok := entityIndex[id]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// DisplayName returns the human-readable name for id, or id itself when it
// is not in the catalog.
func DisplayName(id string) string {
	if e, ok := entityIndex[id]; ok {
		return e.Name
	}
	return id
}

// EntityDomain returns the namespace prefix of an entity id
// ("light.salon_isigi" -> "light"). An id without a dot is its own domain.
func EntityDomain(id string) string {
	d, _, _ := strings.Cut(id, ".")
	return d
}

func IsScene(id string) bool {
	return EntityDomain(id) == "scene"
}
