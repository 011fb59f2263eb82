package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"dairystock/internal/domain"
	apperror "dairystock/internal/errors"
	"dairystock/internal/pkg/logger"
)

// Send processa erros de serviço e envia respostas padronizadas ao cliente.
// Com err == nil, data é codificado em JSON com successStatus.
func Send(w http.ResponseWriter, r *http.Request, log logger.Logger, data interface{}, err error, successStatus int) {
	if err == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(successStatus)

		log.Debug("Requisição concluída com sucesso", map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": successStatus,
		})

		if data != nil {
			if jsonErr := json.NewEncoder(w).Encode(data); jsonErr != nil {
				log.Error("Falha ao codificar JSON de resposta", jsonErr)
			}
		}
		return
	}

	status, category, message := apperror.MapToHTTPStatus(err)

	if status >= 500 {
		log.Error(fmt.Sprintf("Erro de Servidor: %s", category), err)
	} else {
		log.Debug(fmt.Sprintf("Requisição rejeitada com status %d. Categoria: %s", status, category), map[string]interface{}{"path": r.URL.Path})
	}

	body := domain.ErrorResponse{Code: status, Category: category, Message: message}
	var insufficient *apperror.InsufficientStockError
	if errors.As(err, &insufficient) {
		body.ProductID = insufficient.ProductID
		body.Shortage = insufficient.Shortage.String()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// Decode lê o corpo JSON da requisição em dst, recusando campos desconhecidos.
func Decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.WrapValidationError("Payload inválido. Verifique o formato JSON.", err)
	}
	return nil
}
