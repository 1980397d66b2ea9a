package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "casei/internal/errors"
	"casei/internal/registry"
	"casei/internal/validator"
)

// reservedKeys are never taken from a change payload.
var reservedKeys = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"deleted_at": true,
}

// splitPayload separates scalar fields from many-to-many id lists.
func splitPayload(ct *registry.ContentType, data map[string]interface{}) (fields, relations map[string]interface{}) {
	fields = map[string]interface{}{}
	relations = map[string]interface{}{}
	for k, v := range data {
		if reservedKeys[k] {
			continue
		}
		if _, ok := ct.Relation(k); ok {
			relations[k] = v
			continue
		}
		fields[k] = v
	}
	return fields, relations
}

// decodeInto overlays fields onto obj through its JSON tags.
func decodeInto(obj any, fields map[string]interface{}) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return apperrors.WithMessage(apperrors.ErrValidationFailed, err.Error())
	}
	if err := json.Unmarshal(data, obj); err != nil {
		return apperrors.WithMessage(apperrors.ErrValidationFailed, describeDecodeError(err))
	}
	return nil
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)
	}
	return err.Error()
}

// validateObject runs struct validation. With partial set, only errors for
// keys present in the payload are reported.
func validateObject(obj any, payload map[string]interface{}, partial bool) error {
	fe, err := validator.Struct(obj)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if partial {
		fe = fe.Only(payload)
	}
	if len(fe) > 0 {
		return apperrors.WithMessage(apperrors.ErrValidationFailed, fe.String())
	}
	return nil
}

// idList converts a decoded JSON array of ids to strings.
func idList(key string, raw interface{}) ([]string, error) {
	if raw == nil {
		return []string{}, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		if ss, ok := raw.([]string); ok {
			return ss, nil
		}
		return nil, apperrors.WithMessage(apperrors.ErrValidationFailed, key+": expected a list of ids")
	}
	ids := make([]string, 0, len(items))
	seen := map[string]bool{}
	for _, item := range items {
		id, ok := item.(string)
		if !ok || id == "" {
			return nil, apperrors.WithMessage(apperrors.ErrValidationFailed, key+": expected a list of ids")
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// loadRelated fetches the rows named by ids and fails if any is missing.
func loadRelated(tx *gorm.DB, rel registry.Relation, ids []string) (any, error) {
	target, ok := registry.Lookup(rel.Target)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrUnknownModel, "unknown model %s", rel.Target)
	}
	rows := target.NewSlice()
	if len(ids) > 0 {
		if err := tx.Where("id IN ?", ids).Find(rows).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	slice := reflect.ValueOf(rows).Elem()
	if slice.Len() != len(ids) {
		return nil, apperrors.WithMessage(apperrors.ErrValidationFailed,
			fmt.Sprintf("%s: %d of %d ids do not exist", rel.Key, len(ids)-slice.Len(), len(ids)))
	}
	return slice.Interface(), nil
}

// checkRelations verifies every id list without writing anything.
func checkRelations(tx *gorm.DB, ct *registry.ContentType, relations map[string]interface{}) error {
	for _, key := range sortedKeys(relations) {
		rel, _ := ct.Relation(key)
		ids, err := idList(key, relations[key])
		if err != nil {
			return err
		}
		if _, err := loadRelated(tx, rel, ids); err != nil {
			return err
		}
	}
	return nil
}

// setRelations replaces each listed association of obj.
func setRelations(tx *gorm.DB, ct *registry.ContentType, obj any, relations map[string]interface{}) error {
	for _, key := range sortedKeys(relations) {
		rel, _ := ct.Relation(key)
		ids, err := idList(key, relations[key])
		if err != nil {
			return err
		}
		assoc := tx.Model(obj).Association(rel.Field)
		if len(ids) == 0 {
			if err := assoc.Clear(); err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			continue
		}
		related, err := loadRelated(tx, rel, ids)
		if err != nil {
			return err
		}
		if err := assoc.Replace(related); err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return nil
}

// loadObject fetches a live row, optionally with its relations.
func loadObject(tx *gorm.DB, ct *registry.ContentType, id string, withRelations bool) (any, error) {
	obj := ct.New()
	q := tx
	if withRelations {
		for _, r := range ct.Relations {
			q = q.Preload(r.Field)
		}
	}
	if err := q.Where("id = ?", id).First(obj).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrObjectMissing
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return obj, nil
}

// serialize renders a model as a JSON object with relations reduced to id lists.
func serialize(ct *registry.ContentType, obj any) (map[string]interface{}, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	for _, r := range ct.Relations {
		ids := []interface{}{}
		if items, ok := out[r.Key].([]interface{}); ok {
			for _, item := range items {
				if m, ok := item.(map[string]interface{}); ok {
					ids = append(ids, m["id"])
				}
			}
		}
		out[r.Key] = ids
	}
	return out, nil
}

// snapshot returns the serialized live row, limited to keys when given.
func snapshot(tx *gorm.DB, ct *registry.ContentType, id string, keys map[string]interface{}) (map[string]interface{}, error) {
	obj, err := loadObject(tx, ct, id, true)
	if err != nil {
		return nil, err
	}
	full, err := serialize(ct, obj)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if keys == nil {
		return full, nil
	}
	out := map[string]interface{}{}
	for k := range keys {
		if v, ok := full[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// deleteObject removes a row and every join row that points at it.
func deleteObject(tx *gorm.DB, ct *registry.ContentType, obj any, id string) error {
	for _, link := range registry.LinkedFrom(ct.Name) {
		jt, err := lookupJoinTable(tx, link.Owner.New(), link.Relation.Field)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Exec("DELETE FROM "+jt.Table+" WHERE "+jt.TargetColumn+" = ?", id).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	if err := tx.Unscoped().Select(clause.Associations).Delete(obj).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// joinTable names the join table of a many-to-many relation and its two
// foreign key columns.
type joinTable struct {
	Table        string
	OwnerColumn  string
	TargetColumn string
}

func lookupJoinTable(tx *gorm.DB, owner any, field string) (joinTable, error) {
	stmt := &gorm.Statement{DB: tx}
	if err := stmt.Parse(owner); err != nil {
		return joinTable{}, err
	}
	rel, ok := stmt.Schema.Relationships.Relations[field]
	if !ok || rel.JoinTable == nil {
		return joinTable{}, fmt.Errorf("%s.%s is not a many-to-many relation", stmt.Schema.Name, field)
	}
	jt := joinTable{Table: rel.JoinTable.Table}
	for _, ref := range rel.References {
		if ref.OwnPrimaryKey {
			jt.OwnerColumn = ref.ForeignKey.DBName
		} else {
			jt.TargetColumn = ref.ForeignKey.DBName
		}
	}
	if jt.OwnerColumn == "" || jt.TargetColumn == "" {
		return joinTable{}, fmt.Errorf("%s.%s has incomplete join references", stmt.Schema.Name, field)
	}
	return jt, nil
}

// LinkedObject identifies a CASEI object that holds a reference to another row.
type LinkedObject struct {
	ContentType string
	ObjectID    string
}

// LinkedObjects returns every object whose many-to-many relations point at
// the given row, for example the campaigns tagged with a GCMD project.
func LinkedObjects(db *gorm.DB, contentType, id string) ([]LinkedObject, error) {
	var out []LinkedObject
	for _, link := range registry.LinkedFrom(contentType) {
		jt, err := lookupJoinTable(db, link.Owner.New(), link.Relation.Field)
		if err != nil {
			return nil, err
		}
		var ids []string
		if err := db.Table(jt.Table).Where(jt.TargetColumn+" = ?", id).Pluck(jt.OwnerColumn, &ids).Error; err != nil {
			return nil, err
		}
		sort.Strings(ids)
		for _, ownerID := range ids {
			out = append(out, LinkedObject{ContentType: link.Owner.Name, ObjectID: ownerID})
		}
	}
	return out, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func mergeMaps(base, patch map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
